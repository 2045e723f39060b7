// Package dynamo provides the primitives shared by every part of the
// agent simulator.
//
//   - [Vec]: 2D vector used for positions, velocities and forces
//   - [Workers]: runs one goroutine per worker partition and waits for all
//     of them, which is the phase barrier of the scheduler
//   - sentinel errors ([ErrInvalidDomain], [ErrOutOfBounds], [ErrCalc],
//     [ErrStorage], [ErrRng], [ErrInvalidConfig]) and their typed wrappers
//
// # Errors
//
// Every typed error unwraps to its sentinel, so callers can classify a
// failed run without type assertions:
//
//	if errors.Is(err, dynamo.ErrOutOfBounds) {
//	    // restart from the last snapshot with a smaller dt
//	}
package dynamo
