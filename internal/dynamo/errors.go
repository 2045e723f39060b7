package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidDomain indicates a malformed domain (degenerate bounds,
	// non-positive voxel counts, or a cutoff wider than a voxel).
	ErrInvalidDomain = errors.New("dynamo: invalid domain")

	// ErrOutOfBounds indicates a position that maps to no voxel.
	ErrOutOfBounds = errors.New("dynamo: position outside domain")

	// ErrCalc indicates a force or integration result that is NaN or Inf.
	ErrCalc = errors.New("dynamo: non-finite calculation result")

	// ErrStorage indicates that a snapshot could not be persisted.
	ErrStorage = errors.New("dynamo: snapshot storage failed")

	// ErrRng indicates a failed draw from the random source.
	ErrRng = errors.New("dynamo: random number generation failed")

	// ErrInvalidConfig indicates a configuration value outside its valid range.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")
)

// DomainError describes why a domain could not be constructed.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidDomain, e.Reason)
}

func (e *DomainError) Unwrap() error { return ErrInvalidDomain }

// OutOfBoundsError carries the offending position and the domain extents.
type OutOfBoundsError struct {
	Pos      Vec
	Min, Max Vec
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%v: (%g, %g) not in [%g, %g) x [%g, %g)",
		ErrOutOfBounds, e.Pos.X, e.Pos.Y, e.Min.X, e.Max.X, e.Min.Y, e.Max.Y)
}

func (e *OutOfBoundsError) Unwrap() error { return ErrOutOfBounds }

// CalcError names the computation that produced a non-finite value.
type CalcError struct {
	Op    string
	Value Vec
}

func (e *CalcError) Error() string {
	return fmt.Sprintf("%v: %s produced (%g, %g)", ErrCalc, e.Op, e.Value.X, e.Value.Y)
}

func (e *CalcError) Unwrap() error { return ErrCalc }

// StorageError records the save point that failed and the backend error.
type StorageError struct {
	Iteration uint64
	Time      float64
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%v at t=%g (iteration %d): %v", ErrStorage, e.Time, e.Iteration, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// RngError describes an invalid draw request or result.
type RngError struct {
	Reason string
}

func (e *RngError) Error() string {
	return fmt.Sprintf("%v: %s", ErrRng, e.Reason)
}

func (e *RngError) Unwrap() error { return ErrRng }

// SimulationError wraps an error with the step, time and agent it occurred at.
type SimulationError struct {
	Step    uint64
	Time    float64
	AgentID uint64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f) agent %d: %v", e.Step, e.Time, e.AgentID, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
