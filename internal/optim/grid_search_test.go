package optim

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/agentsim/internal/config"
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/experiment"
)

func base(t *testing.T) *config.Config {
	cfg, ok := config.GetPreset("quick")
	require.True(t, ok)
	cfg.NAgents = 20
	cfg.TEnd = 0.5
	cfg.Agent.InitialSpeed = 1
	return cfg
}

func TestGridSearchPicksHighestDamping(t *testing.T) {
	quiet := experiment.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	g := NewGridSearch(
		[]string{"damping", "n_threads"},
		[][]float64{{0, 1, 4}, {1, 2}},
	)

	best, val, trials, err := g.Search(context.Background(), base(t), "kinetic_energy", quiet)
	require.NoError(t, err)
	assert.Len(t, trials, 6)
	assert.Equal(t, 4.0, best["damping"])
	assert.Equal(t, 1.0, best["n_threads"])
	assert.Greater(t, val, 0.0)
	for _, tr := range trials {
		assert.NoError(t, tr.Err)
		assert.GreaterOrEqual(t, tr.Value, val)
	}
}

func TestGridSearchSkipsFailedCombinations(t *testing.T) {
	quiet := experiment.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	g := NewGridSearch([]string{"dt"}, [][]float64{{-1, 0.01}})

	best, _, trials, err := g.Search(context.Background(), base(t), "kinetic_energy", quiet)
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.ErrorIs(t, trials[0].Err, dynamo.ErrInvalidConfig)
	assert.Equal(t, 0.01, best["dt"])
}

func TestGridSearchErrors(t *testing.T) {
	_, _, _, err := NewGridSearch([]string{"dt"}, nil).Search(context.Background(), base(t), "kinetic_energy")
	assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)

	_, _, _, err = NewGridSearch([]string{"dt"}, [][]float64{{0.01}}).Search(context.Background(), base(t), "no_such_metric")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err = NewGridSearch([]string{"dt"}, [][]float64{{0.01}}).Search(ctx, base(t), "kinetic_energy")
	assert.ErrorIs(t, err, context.Canceled)
}
