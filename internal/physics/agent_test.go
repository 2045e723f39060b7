package physics

import (
	"testing"

	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/stretchr/testify/assert"
)

func TestMechanicsValidate(t *testing.T) {
	ok := Mechanics{Pos: dynamo.Vec{X: 1, Y: 1}, Damping: 0, Mass: 1}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Mass = 0
	assert.ErrorIs(t, bad.Validate(), dynamo.ErrInvalidConfig)

	bad = ok
	bad.Damping = -1
	assert.ErrorIs(t, bad.Validate(), dynamo.ErrInvalidConfig)
}

func TestAgentValidateNamesAgent(t *testing.T) {
	a := Agent{
		ID:          42,
		Mechanics:   Mechanics{Damping: 1, Mass: 1},
		Interaction: BoundLennardJones{Epsilon: 0.01, Sigma: 1, Bound: 2, Cutoff: 1},
	}
	err := a.Validate()
	assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "agent 42")
}

func TestMomentumAndKineticEnergy(t *testing.T) {
	m := Mechanics{Vel: dynamo.Vec{X: 3, Y: 4}, Mass: 2}
	assert.Equal(t, dynamo.Vec{X: 6, Y: 8}, m.Momentum())
	assert.InDelta(t, 25.0, m.KineticEnergy(), 1e-12)
}
