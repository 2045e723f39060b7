package experiment

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/agentsim/internal/config"
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
	"github.com/san-kum/agentsim/internal/sim"
	"github.com/san-kum/agentsim/internal/storage"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func quickConfig(t *testing.T) *config.Config {
	cfg, ok := config.GetPreset("quick")
	require.True(t, ok)
	return cfg
}

func TestRunWritesEverySavePoint(t *testing.T) {
	cfg := quickConfig(t)
	w := sim.NewMemoryWriter()

	res, err := Run(context.Background(), cfg, WithWriter(w), WithLogger(quiet))
	require.NoError(t, err)

	snaps := w.Snapshots()
	require.Len(t, snaps, len(cfg.Points()))
	for _, snap := range snaps {
		assert.Len(t, snap.Agents, cfg.NAgents)
	}
	assert.Equal(t, uint64(len(snaps)), res.Stats.Snapshots)
	assert.Contains(t, res.Metrics, "kinetic_energy")
	assert.Len(t, res.Recorder.Times(), len(snaps))
	assert.Empty(t, res.RunID)
}

func TestRunWithStore(t *testing.T) {
	cfg := quickConfig(t)
	cfg.BatchSize = 16
	st := storage.New(t.TempDir())
	w := sim.NewMemoryWriter()

	res, err := Run(context.Background(), cfg, WithStore(st), WithWriter(w), WithLogger(quiet))
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	meta, err := st.Load(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, cfg.NAgents, meta.Agents)
	assert.Equal(t, len(cfg.Points()), meta.Snapshots)
	assert.NotNil(t, meta.Finished)
	assert.Equal(t, "finished", meta.Status())
	assert.Empty(t, meta.Error)
	assert.Equal(t, res.Metrics, meta.Metrics)

	iterations, err := st.Iterations(res.RunID)
	require.NoError(t, err)
	require.Len(t, iterations, len(cfg.Points()))

	memory := w.Snapshots()
	last, err := st.LoadSnapshot(res.RunID, iterations[len(iterations)-1])
	require.NoError(t, err)
	assert.Equal(t, memory[len(memory)-1], last)
}

func TestAbortedRunIsNotFinished(t *testing.T) {
	cfg := quickConfig(t)
	st := storage.New(t.TempDir())
	tunneling := []physics.Agent{{
		ID: 9,
		Mechanics: physics.Mechanics{
			Pos:     dynamo.Vec{X: 15, Y: 15},
			Vel:     dynamo.Vec{X: 1e6},
			Damping: 1,
			Mass:    1,
		},
		Interaction: cfg.Interaction(),
	}}

	res, err := Run(context.Background(), cfg, WithStore(st), WithAgents(tunneling), WithLogger(quiet))
	require.ErrorIs(t, err, dynamo.ErrOutOfBounds)
	require.NotNil(t, res)
	require.NotEmpty(t, res.RunID)

	meta, err := st.Load(res.RunID)
	require.NoError(t, err)
	assert.Nil(t, meta.Finished)
	assert.Equal(t, "failed", meta.Status())
	assert.Contains(t, meta.Error, "outside domain")
	assert.Equal(t, 1, meta.Snapshots)
}

func TestRunIndependentOfThreads(t *testing.T) {
	final := func(threads int) []physics.Agent {
		cfg := quickConfig(t)
		cfg.NThreads = threads
		e := New(cfg, WithLogger(quiet))
		_, err := e.Run(context.Background())
		require.NoError(t, err)
		return e.Scheduler().Agents()
	}
	assert.Equal(t, final(1), final(4))
}

func TestSetupRejectsWideCutoff(t *testing.T) {
	cfg := quickConfig(t)
	cfg.NVoxels = 60
	st := storage.New(t.TempDir())

	_, err := Run(context.Background(), cfg, WithStore(st), WithLogger(quiet))
	assert.ErrorIs(t, err, dynamo.ErrInvalidDomain)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs, "no run directory may be created for a rejected setup")
}

func TestSetupRejectsInvalidConfig(t *testing.T) {
	cfg := quickConfig(t)
	cfg.Integrator = "rk4"
	assert.ErrorIs(t, New(cfg, WithLogger(quiet)).Setup(), dynamo.ErrInvalidConfig)

	cfg = quickConfig(t)
	cfg.Dt = 0
	assert.ErrorIs(t, New(cfg, WithLogger(quiet)).Setup(), dynamo.ErrInvalidConfig)
}

func TestRunWithAgents(t *testing.T) {
	cfg := quickConfig(t)
	agents := []physics.Agent{{
		ID: 11,
		Mechanics: physics.Mechanics{
			Pos:  dynamo.Vec{X: 1, Y: 1},
			Vel:  dynamo.Vec{X: 1},
			Mass: 1,
		},
		Interaction: cfg.Interaction(),
	}}

	var steps uint64
	progress := sim.ProgressFunc(func(step, total uint64) { steps = step })
	e := New(cfg, WithAgents(agents), WithProgress(progress), WithLogger(quiet))
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	out := e.Scheduler().Agents()
	require.Len(t, out, 1)
	assert.Equal(t, uint64(11), out[0].ID)
	assert.InDelta(t, 1+cfg.TEnd, out[0].Mechanics.Pos.X, 1e-9)
	assert.Equal(t, e.Scheduler().Clock().TotalSteps(), steps)
}
