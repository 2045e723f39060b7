package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/agentsim/internal/config"
	"github.com/san-kum/agentsim/internal/domain"
	"github.com/san-kum/agentsim/internal/integrators"
	"github.com/san-kum/agentsim/internal/metrics"
	"github.com/san-kum/agentsim/internal/physics"
	"github.com/san-kum/agentsim/internal/sim"
	"github.com/san-kum/agentsim/internal/storage"
)

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Stats    sim.Stats
	Metrics  map[string]float64
	Recorder *metrics.Recorder
	Elapsed  time.Duration
}

type Option func(*Experiment)

// WithWriter adds a snapshot writer next to the store and the metric
// recorder.
func WithWriter(w sim.SnapshotWriter) Option {
	return func(e *Experiment) { e.writers = append(e.writers, w) }
}

func WithProgress(p sim.Progress) Option {
	return func(e *Experiment) { e.progress = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

// WithStore persists every snapshot under a new run directory.
func WithStore(st *storage.Store) Option {
	return func(e *Experiment) { e.store = st }
}

// WithAgents replaces the seeded population.
func WithAgents(agents []physics.Agent) Option {
	return func(e *Experiment) { e.agents = agents }
}

// Experiment builds a scheduler from a config and runs it.
type Experiment struct {
	cfg      *config.Config
	writers  []sim.SnapshotWriter
	progress sim.Progress
	logger   *slog.Logger
	store    *storage.Store
	agents   []physics.Agent

	scheduler *sim.Scheduler
	recorder  *metrics.Recorder
	run       *storage.Run
}

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{
		cfg:    cfg.Clone(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Setup validates the config, seeds the agents and builds the scheduler.
// No snapshot is written and no run directory is created before every
// component has been constructed.
func (e *Experiment) Setup() error {
	cfg := e.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	d, err := domain.NewSquare(cfg.DomainSize, cfg.NVoxels)
	if err != nil {
		return err
	}
	clock, err := sim.NewClock(cfg.T0, cfg.Dt, cfg.Points())
	if err != nil {
		return err
	}
	integ, err := integrators.Get(cfg.Integrator)
	if err != nil {
		return err
	}

	agents := e.agents
	if agents == nil {
		agents, err = SeedAgents(cfg, NewSeeder(cfg.Seed))
		if err != nil {
			return err
		}
	}

	e.recorder = metrics.NewRecorder()
	scheduler, err := sim.New(d, clock, agents, sim.Options{
		Threads:    cfg.NThreads,
		Integrator: integ,
		Writer:     sim.WriterFunc(e.write),
		Progress:   e.progress,
		Logger:     e.logger,
	})
	if err != nil {
		return err
	}

	if e.store != nil {
		if err := e.store.Init(); err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		meta := metadata(cfg, clock)
		meta.Agents = len(agents)
		run, err := e.store.NewRun(meta)
		if err != nil {
			return err
		}
		run.SetBatchSize(cfg.BatchSize)
		e.run = run
		e.logger.Info("run directory created", "run", run.ID(), "dir", run.Dir())
	}

	e.scheduler = scheduler
	return nil
}

// Run sets the experiment up if needed and drives it to the end time.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.scheduler == nil {
		if err := e.Setup(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	runErr := e.scheduler.Run(ctx)
	res := &Result{
		Stats:    e.scheduler.Stats(),
		Metrics:  e.recorder.Final(),
		Recorder: e.recorder,
		Elapsed:  time.Since(start),
	}

	if e.run != nil {
		res.RunID = e.run.ID()
		if runErr != nil {
			if err := e.run.Abort(runErr, res.Metrics); err != nil {
				e.logger.Error("recording aborted run", "run", e.run.ID(), "err", err)
			}
		} else if err := e.run.Finish(res.Metrics); err != nil {
			runErr = fmt.Errorf("finish run %s: %w", e.run.ID(), err)
		}
	}
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

// write hands a snapshot to the store first, so a failed write is never
// seen by the metrics, then to the extra writers and the recorder.
func (e *Experiment) write(ctx context.Context, snap sim.Snapshot) error {
	var writers sim.MultiWriter
	if e.run != nil {
		writers = append(writers, e.run)
	}
	writers = append(writers, e.writers...)
	writers = append(writers, e.recorder)
	return writers.Write(ctx, snap)
}

func (e *Experiment) Scheduler() *sim.Scheduler { return e.scheduler }

func (e *Experiment) Config() *config.Config { return e.cfg }

// Run builds and runs an experiment in one call.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (*Result, error) {
	return New(cfg, opts...).Run(ctx)
}

func metadata(cfg *config.Config, clock *sim.Clock) storage.RunMetadata {
	return storage.RunMetadata{
		Seed:       cfg.Seed,
		Agents:     cfg.NAgents,
		DomainSize: cfg.DomainSize,
		Voxels:     cfg.NVoxels,
		Threads:    cfg.NThreads,
		T0:         cfg.T0,
		Dt:         cfg.Dt,
		EndTime:    clock.EndTime(),
		SavePoints: clock.SavePoints(),
		Integrator: cfg.Integrator,
	}
}
