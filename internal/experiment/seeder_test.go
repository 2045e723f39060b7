package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/agentsim/internal/config"
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
)

func TestSeederUniform(t *testing.T) {
	s := NewSeeder(1)
	for i := 0; i < 1000; i++ {
		x, err := s.Uniform(2, 3)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, x, 2.0)
		assert.Less(t, x, 3.0)
	}

	for _, r := range [][2]float64{{1, 1}, {3, 2}} {
		_, err := s.Uniform(r[0], r[1])
		assert.ErrorIs(t, err, dynamo.ErrRng)
	}
}

func TestSeederReproducible(t *testing.T) {
	a, b := NewSeeder(7), NewSeeder(7)
	for i := 0; i < 10; i++ {
		pa, err := a.Position(30)
		require.NoError(t, err)
		pb, err := b.Position(30)
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
	}
}

func TestSeederVelocity(t *testing.T) {
	s := NewSeeder(3)
	v, err := s.Velocity(2)
	require.NoError(t, err)
	assert.InDelta(t, 2, dynamo.Distance(v, dynamo.Vec{}), 1e-12)

	v, err = s.Velocity(0)
	require.NoError(t, err)
	assert.Equal(t, dynamo.Vec{}, v)
}

func TestSeedAgents(t *testing.T) {
	cfg := config.DefaultConfig()
	agents, err := SeedAgents(cfg, NewSeeder(cfg.Seed))
	require.NoError(t, err)
	require.Len(t, agents, cfg.NAgents)

	for i, a := range agents {
		assert.Equal(t, uint64(i), a.ID)
		require.NoError(t, a.Validate())
		assert.Equal(t, cfg.Interaction(), a.Interaction)
		assert.True(t, a.Mechanics.Pos.X >= 0 && a.Mechanics.Pos.X < cfg.DomainSize)
		assert.True(t, a.Mechanics.Pos.Y >= 0 && a.Mechanics.Pos.Y < cfg.DomainSize)
		for _, b := range agents[:i] {
			assert.GreaterOrEqual(t, dynamo.Distance(a.Mechanics.Pos, b.Mechanics.Pos), cfg.MinSeparation)
		}
	}

	again, err := SeedAgents(cfg, NewSeeder(cfg.Seed))
	require.NoError(t, err)
	assert.Equal(t, agents, again)
}

func TestSeedAgentsCrowded(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NAgents = 1000
	cfg.DomainSize = 5

	_, err := SeedAgents(cfg, NewSeeder(0))
	assert.ErrorIs(t, err, dynamo.ErrRng)
}

func TestSeedAgentsWithoutSeparation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NAgents = 10
	cfg.MinSeparation = 0

	agents, err := SeedAgents(cfg, NewSeeder(0))
	require.NoError(t, err)
	assert.Len(t, agents, 10)
	assert.IsType(t, physics.Agent{}, agents[0])
}
