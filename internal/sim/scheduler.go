package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/san-kum/agentsim/internal/domain"
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/integrators"
	"github.com/san-kum/agentsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

// Options configures a Scheduler. Zero values select the defaults: one
// thread, semi-implicit Euler, no snapshots, no progress, slog.Default().
type Options struct {
	Threads    int
	Integrator integrators.Integrator
	Writer     SnapshotWriter
	Progress   Progress
	Logger     *slog.Logger
}

// cell is the per-voxel bookkeeping of the scheduler.
//
// During the force phase the worker owning a cell writes the forces on the
// cell's own agents into self and the reactions on the agents of each
// higher-index neighbor into outbox[k] (aligned with upper[k]). During the
// integrate phase every agent sums self plus the outboxes its lower-index
// neighbors wrote for it, in ascending voxel order, so the summation order
// does not depend on how voxels are spread across workers.
type cell struct {
	agents []int // indices into Scheduler.agents, ascending (= ascending ID)
	upper  []int
	lower  []lowerRef
	self   []dynamo.Vec
	outbox [][]dynamo.Vec
}

// lowerRef locates the outbox a lower-index neighbor fills for this cell.
type lowerRef struct {
	voxel, slot int
}

// Scheduler runs the fixed-step loop over a voxel-decomposed population.
type Scheduler struct {
	domain     *domain.Cartesian
	clock      *Clock
	integrator integrators.Integrator
	writer     SnapshotWriter
	progress   Progress
	logger     *slog.Logger
	threads    int

	agents []physics.Agent
	staged []physics.Mechanics
	target []int
	speeds []float64 // per partition, max speed seen in the last integrate phase

	cells []cell
	parts []partition

	phase  Phase
	stats  Stats
	warned bool
}

// New places the agents into their voxels. Agents are kept in ascending ID
// order; IDs must be unique.
func New(d *domain.Cartesian, clock *Clock, agents []physics.Agent, opts Options) (*Scheduler, error) {
	if d == nil || clock == nil {
		return nil, fmt.Errorf("%w: domain and clock are required", dynamo.ErrInvalidConfig)
	}
	if opts.Threads < 1 {
		return nil, fmt.Errorf("%w: n_threads must be positive, got %d", dynamo.ErrInvalidConfig, opts.Threads)
	}
	if opts.Integrator == nil {
		opts.Integrator = integrators.NewSemiImplicitEuler()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Scheduler{
		domain:     d,
		clock:      clock,
		integrator: opts.Integrator,
		writer:     opts.Writer,
		progress:   opts.Progress,
		logger:     opts.Logger,
		threads:    opts.Threads,
		agents:     slices.Clone(agents),
		cells:      make([]cell, d.Len()),
	}
	slices.SortFunc(s.agents, func(a, b physics.Agent) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	maxCutoff := 0.0
	for i := range s.agents {
		a := &s.agents[i]
		if i > 0 && s.agents[i-1].ID == a.ID {
			return nil, fmt.Errorf("%w: duplicate agent id %d", dynamo.ErrInvalidConfig, a.ID)
		}
		if err := a.Validate(); err != nil {
			return nil, err
		}
		maxCutoff = math.Max(maxCutoff, a.Interaction.Cutoff)

		v, err := d.VoxelOf(a.Mechanics.Pos)
		if err != nil {
			return nil, s.fail(a.ID, err)
		}
		a.Voxel = v
		s.cells[v].agents = append(s.cells[v].agents, i)
	}
	if err := d.CheckCutoff(maxCutoff); err != nil {
		return nil, err
	}

	for v := range s.cells {
		for _, w := range d.NeighborsOf(v) {
			if w > v {
				s.cells[v].upper = append(s.cells[v].upper, w)
			}
		}
		s.cells[v].outbox = make([][]dynamo.Vec, len(s.cells[v].upper))
	}
	// lower lists come out ascending because v walks the voxels in order
	for v := range s.cells {
		for k, w := range s.cells[v].upper {
			s.cells[w].lower = append(s.cells[w].lower, lowerRef{voxel: v, slot: k})
		}
	}

	s.staged = make([]physics.Mechanics, len(s.agents))
	s.target = make([]int, len(s.agents))
	s.speeds = make([]float64, s.threads)
	s.parts = partitionVoxels(s.counts(), s.threads)
	return s, nil
}

// Run drives the clock to its end time, writing a snapshot at every save
// point. ctx is only consulted between steps.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("simulation started",
		"agents", len(s.agents),
		"voxels", s.domain.Len(),
		"threads", s.threads,
		"dt", s.clock.Dt,
		"steps", s.clock.TotalSteps(),
		"integrator", s.integrator.Name())

	for {
		if s.clock.IsSavePoint() {
			if err := s.save(ctx); err != nil {
				return err
			}
		}
		if s.clock.Done() {
			s.phase = PhaseTerminal
			s.logger.Info("simulation finished",
				"steps", s.stats.Steps,
				"migrations", s.stats.Migrations,
				"snapshots", s.stats.Snapshots)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(); err != nil {
			return err
		}
		if s.progress != nil {
			s.progress.Update(s.clock.Iteration(), s.clock.TotalSteps())
		}
	}
}

// Step advances every agent by one time step. When it fails, no agent or
// voxel has been modified.
func (s *Scheduler) Step() error {
	s.phase = PhaseForce
	if err := s.workers(s.accumulate); err != nil {
		return err
	}

	s.phase = PhaseIntegrate
	if err := s.workers(s.integrate); err != nil {
		return err
	}
	s.checkSpeed()

	s.phase = PhaseMigrate
	s.migrate()

	s.phase = PhaseBarrier
	s.clock.Advance()
	s.stats.Steps++

	if counts := s.counts(); imbalanced(s.parts, counts) {
		s.parts = partitionVoxels(counts, s.threads)
		s.stats.Rebalances++
	}
	return nil
}

func (s *Scheduler) workers(fn func(worker int, p partition) error) error {
	return dynamo.Workers(len(s.parts), func(w int) error {
		return fn(w, s.parts[w])
	})
}

// accumulate evaluates every pair with at least one agent in the worker's
// voxels exactly once.
func (s *Scheduler) accumulate(_ int, p partition) error {
	for v := p.start; v < p.end; v++ {
		c := &s.cells[v]
		c.self = zeroed(c.self, len(c.agents))

		for i, a := range c.agents {
			for j := i + 1; j < len(c.agents); j++ {
				f, err := s.pairForce(a, c.agents[j])
				if err != nil {
					return err
				}
				c.self[i] = r2.Add(c.self[i], f)
				c.self[j] = r2.Sub(c.self[j], f)
			}
		}

		for k, w := range c.upper {
			others := s.cells[w].agents
			out := zeroed(c.outbox[k], len(others))
			c.outbox[k] = out
			for i, a := range c.agents {
				for j, b := range others {
					f, err := s.pairForce(a, b)
					if err != nil {
						return err
					}
					c.self[i] = r2.Add(c.self[i], f)
					out[j] = r2.Sub(out[j], f)
				}
			}
		}
	}
	return nil
}

func (s *Scheduler) pairForce(a, b int) (dynamo.Vec, error) {
	pa, pb := &s.agents[a], &s.agents[b]
	f, err := pa.Interaction.Force(pa.Mechanics.Pos, pb.Mechanics.Pos, pb.Interaction)
	if err != nil {
		return f, s.fail(pa.ID, fmt.Errorf("pair with agent %d: %w", pb.ID, err))
	}
	return f, nil
}

// integrate stages the next mechanics of the worker's agents and the voxel
// they will belong to. Nothing is committed here.
func (s *Scheduler) integrate(w int, p partition) error {
	maxSpeed := 0.0
	for v := p.start; v < p.end; v++ {
		c := &s.cells[v]
		for slot, idx := range c.agents {
			f := c.self[slot]
			for _, l := range c.lower {
				f = r2.Add(f, s.cells[l.voxel].outbox[l.slot][slot])
			}

			a := &s.agents[idx]
			next, err := s.integrator.Step(a.Mechanics, f, s.clock.Dt, s.domain)
			if err != nil {
				return s.fail(a.ID, err)
			}
			target, err := s.domain.VoxelOf(next.Pos)
			if err != nil {
				return s.fail(a.ID, err)
			}

			s.staged[idx] = next
			s.target[idx] = target
			maxSpeed = math.Max(maxSpeed, r2.Norm(next.Vel))
		}
	}
	s.speeds[w] = maxSpeed
	return nil
}

// migrate commits the staged state and hands agents that crossed a voxel
// boundary to their new voxel. It runs on a single goroutine.
func (s *Scheduler) migrate() {
	var moved []int
	for v := range s.cells {
		c := &s.cells[v]
		kept := c.agents[:0]
		for _, idx := range c.agents {
			s.agents[idx].Mechanics = s.staged[idx]
			if s.target[idx] == v {
				kept = append(kept, idx)
				continue
			}
			moved = append(moved, idx)
		}
		c.agents = kept
	}

	for _, idx := range moved {
		v := s.target[idx]
		c := &s.cells[v]
		pos, _ := slices.BinarySearch(c.agents, idx)
		c.agents = slices.Insert(c.agents, pos, idx)
		s.agents[idx].Voxel = v
	}
	s.stats.Migrations += uint64(len(moved))
}

func (s *Scheduler) checkSpeed() {
	maxSpeed := 0.0
	for w := range s.parts {
		maxSpeed = math.Max(maxSpeed, s.speeds[w])
	}
	s.stats.MaxSpeed = math.Max(s.stats.MaxSpeed, maxSpeed)

	if !s.warned && maxSpeed*s.clock.Dt > 0.5*s.domain.MinVoxelSize() {
		s.warned = true
		s.logger.Warn("agents travel more than half a voxel per step; lower dt",
			"max_speed", maxSpeed,
			"dt", s.clock.Dt,
			"voxel_size", s.domain.MinVoxelSize(),
			"time", s.clock.Time())
	}
}

func (s *Scheduler) save(ctx context.Context) error {
	s.phase = PhaseSavePoint
	snap := Snapshot{
		Iteration: s.clock.Iteration(),
		Time:      s.clock.Time(),
		Agents:    s.Agents(),
	}
	if s.writer != nil {
		if err := s.writer.Write(ctx, snap); err != nil {
			return &dynamo.StorageError{Iteration: snap.Iteration, Time: snap.Time, Err: err}
		}
	}
	s.clock.MarkSaved()
	s.stats.Snapshots++
	s.logger.Debug("snapshot written", "iteration", snap.Iteration, "time", snap.Time)
	return nil
}

func (s *Scheduler) fail(agentID uint64, err error) error {
	return &dynamo.SimulationError{
		Step:    s.clock.Iteration(),
		Time:    s.clock.Time(),
		AgentID: agentID,
		Wrapped: err,
	}
}

func (s *Scheduler) counts() []int {
	counts := make([]int, len(s.cells))
	for v := range s.cells {
		counts[v] = len(s.cells[v].agents)
	}
	return counts
}

// Agents returns a copy of all agents in ascending ID order.
func (s *Scheduler) Agents() []physics.Agent {
	return slices.Clone(s.agents)
}

// VoxelAgents returns the IDs owned by voxel v in ascending order.
func (s *Scheduler) VoxelAgents(v int) []uint64 {
	ids := make([]uint64, len(s.cells[v].agents))
	for i, idx := range s.cells[v].agents {
		ids[i] = s.agents[idx].ID
	}
	return ids
}

// CheckVoxelInvariant verifies that every agent is owned by exactly the
// voxel its position maps to.
func (s *Scheduler) CheckVoxelInvariant() error {
	owners := make([]int, len(s.agents))
	for i := range owners {
		owners[i] = -1
	}
	for v := range s.cells {
		for _, idx := range s.cells[v].agents {
			if owners[idx] != -1 {
				return fmt.Errorf("agent %d owned by voxels %d and %d", s.agents[idx].ID, owners[idx], v)
			}
			owners[idx] = v
		}
	}

	errs := make([]error, len(s.agents))
	perr := dynamo.ParallelFor(len(s.agents), s.threads, func(start, end int) error {
		for i := start; i < end; i++ {
			a := &s.agents[i]
			want, err := s.domain.VoxelOf(a.Mechanics.Pos)
			switch {
			case err != nil:
				errs[i] = fmt.Errorf("agent %d: %w", a.ID, err)
			case owners[i] != want || a.Voxel != want:
				errs[i] = fmt.Errorf("agent %d at (%g, %g) belongs to voxel %d, owned by %d (recorded %d)",
					a.ID, a.Mechanics.Pos.X, a.Mechanics.Pos.Y, want, owners[i], a.Voxel)
			}
		}
		return nil
	})
	return errors.Join(append([]error{perr}, errs...)...)
}

func (s *Scheduler) Phase() Phase  { return s.phase }
func (s *Scheduler) Clock() *Clock { return s.clock }
func (s *Scheduler) Stats() Stats  { return s.stats }
func (s *Scheduler) Threads() int  { return s.threads }

func zeroed(buf []dynamo.Vec, n int) []dynamo.Vec {
	if cap(buf) < n {
		return make([]dynamo.Vec, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}
