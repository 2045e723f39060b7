// Package physics provides the agent model of the simulator.
//
// An [Agent] combines two facets as plain fields:
//
//   - [Mechanics]: position, velocity, damping constant and mass, advanced
//     by the integrators package
//   - [BoundLennardJones]: the pair interaction evaluated by the scheduler
//     for every pair of agents in the same or adjacent voxels
//
// # Pair forces
//
// [BoundLennardJones.Force] returns the force on the first agent; the
// scheduler applies the negation to the second one, so every pair is
// evaluated once per step:
//
//	f, err := a.Interaction.Force(a.Mechanics.Pos, b.Mechanics.Pos, b.Interaction)
package physics
