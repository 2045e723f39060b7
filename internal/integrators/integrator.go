package integrators

import (
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

// Boundary confines positions to the domain after a step.
type Boundary interface {
	Reflect(pos, vel dynamo.Vec) (dynamo.Vec, dynamo.Vec)
}

// Integrator advances one agent's mechanics by dt under the net force.
// Implementations must not retain m.
type Integrator interface {
	Name() string
	Step(m physics.Mechanics, force dynamo.Vec, dt float64, b Boundary) (physics.Mechanics, error)
}

// acceleration of damped Newtonian motion: (F - damping*v) / mass.
func acceleration(m physics.Mechanics, force dynamo.Vec) dynamo.Vec {
	return r2.Scale(1/m.Mass, r2.Sub(force, r2.Scale(m.Damping, m.Vel)))
}

func finish(name string, next physics.Mechanics, b Boundary) (physics.Mechanics, error) {
	if !dynamo.IsFinite(next.Pos) {
		return next, &dynamo.CalcError{Op: name + " position", Value: next.Pos}
	}
	if !dynamo.IsFinite(next.Vel) {
		return next, &dynamo.CalcError{Op: name + " velocity", Value: next.Vel}
	}
	if b != nil {
		next.Pos, next.Vel = b.Reflect(next.Pos, next.Vel)
	}
	return next, nil
}
