package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/agentsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// Mechanics is the damped Newtonian state of a point agent.
type Mechanics struct {
	Pos     dynamo.Vec `json:"pos"`
	Vel     dynamo.Vec `json:"vel"`
	Damping float64    `json:"damping_constant"`
	Mass    float64    `json:"mass"`
}

// Validate checks the fixed parameters. Zero damping is allowed.
func (m Mechanics) Validate() error {
	if !(m.Mass > 0) || math.IsInf(m.Mass, 0) {
		return fmt.Errorf("%w: mass must be positive, got %g", dynamo.ErrInvalidConfig, m.Mass)
	}
	if !(m.Damping >= 0) || math.IsInf(m.Damping, 0) {
		return fmt.Errorf("%w: damping must be non-negative, got %g", dynamo.ErrInvalidConfig, m.Damping)
	}
	if !dynamo.IsFinite(m.Pos) || !dynamo.IsFinite(m.Vel) {
		return fmt.Errorf("%w: position and velocity must be finite", dynamo.ErrInvalidConfig)
	}
	return nil
}

func (m Mechanics) Momentum() dynamo.Vec {
	return r2.Scale(m.Mass, m.Vel)
}

func (m Mechanics) KineticEnergy() float64 {
	return 0.5 * m.Mass * r2.Norm2(m.Vel)
}

// Agent is a point agent with a mechanics facet and an interaction facet.
// Voxel is the flat index of the voxel that owns the agent.
type Agent struct {
	ID          uint64            `json:"id"`
	Mechanics   Mechanics         `json:"mechanics"`
	Interaction BoundLennardJones `json:"interaction"`
	Voxel       int               `json:"voxel"`
}

func (a *Agent) Validate() error {
	if err := a.Mechanics.Validate(); err != nil {
		return fmt.Errorf("agent %d: %w", a.ID, err)
	}
	if err := a.Interaction.Validate(); err != nil {
		return fmt.Errorf("agent %d: %w", a.ID, err)
	}
	return nil
}
