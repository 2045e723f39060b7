package sim_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/exp/rand"

	"github.com/san-kum/agentsim/internal/domain"
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
	"github.com/san-kum/agentsim/internal/sim"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var defaultLJ = physics.BoundLennardJones{Epsilon: 0.01, Sigma: 1, Bound: 0.1, Cutoff: 1}

func agent(id uint64, x, y, vx, vy, damping float64) physics.Agent {
	return physics.Agent{
		ID: id,
		Mechanics: physics.Mechanics{
			Pos:     dynamo.Vec{X: x, Y: y},
			Vel:     dynamo.Vec{X: vx, Y: vy},
			Damping: damping,
			Mass:    1,
		},
		Interaction: defaultLJ,
	}
}

// cluster places n agents on a jittered lattice that straddles the voxel
// boundaries at 10 and 20 so that pairs interact across voxels.
func cluster(n int, seed uint64) []physics.Agent {
	rng := rand.New(rand.NewSource(seed))
	agents := make([]physics.Agent, n)
	for i := range agents {
		col, row := i%15, i/15
		x := 5 + 0.95*float64(col) + 0.02*rng.Float64()
		y := 8 + 0.95*float64(row) + 0.02*rng.Float64()
		angle := 2 * math.Pi * rng.Float64()
		agents[i] = agent(uint64(i), x, y, 0.5*math.Cos(angle), 0.5*math.Sin(angle), 1)
	}
	return agents
}

func newScheduler(agents []physics.Agent, dt float64, points []float64, opts sim.Options) *sim.Scheduler {
	d, err := domain.NewSquare(30, 3)
	Expect(err).NotTo(HaveOccurred())
	clock, err := sim.NewClock(0, dt, points)
	Expect(err).NotTo(HaveOccurred())
	if opts.Threads == 0 {
		opts.Threads = 1
	}
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	s, err := sim.New(d, clock, agents, opts)
	Expect(err).NotTo(HaveOccurred())
	return s
}

func savePoints(n int) []float64 {
	points := make([]float64, n+1)
	for i := range points {
		points[i] = float64(i)
	}
	return points
}

var _ = Describe("Scheduler", func() {
	Describe("construction", func() {
		It("starts idle with agents sorted by id and placed in their voxels", func() {
			agents := []physics.Agent{
				agent(7, 25, 25, 0, 0, 1),
				agent(2, 1, 1, 0, 0, 1),
				agent(4, 15, 5, 0, 0, 1),
			}
			s := newScheduler(agents, 0.01, []float64{1}, sim.Options{})

			Expect(s.Phase()).To(Equal(sim.PhaseIdle))
			got := s.Agents()
			Expect(got).To(HaveLen(3))
			Expect([]uint64{got[0].ID, got[1].ID, got[2].ID}).To(Equal([]uint64{2, 4, 7}))
			Expect(s.VoxelAgents(0)).To(Equal([]uint64{2}))
			Expect(s.VoxelAgents(1)).To(Equal([]uint64{4}))
			Expect(s.VoxelAgents(8)).To(Equal([]uint64{7}))
			Expect(s.CheckVoxelInvariant()).To(Succeed())
		})

		It("rejects duplicate ids", func() {
			d, _ := domain.NewSquare(30, 3)
			clock, _ := sim.NewClock(0, 0.01, []float64{1})
			_, err := sim.New(d, clock, []physics.Agent{agent(1, 1, 1, 0, 0, 1), agent(1, 2, 2, 0, 0, 1)},
				sim.Options{Threads: 1, Logger: quiet})
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})

		It("rejects a cutoff wider than a voxel", func() {
			d, _ := domain.NewSquare(30, 30)
			clock, _ := sim.NewClock(0, 0.01, []float64{1})
			a := agent(1, 1, 1, 0, 0, 1)
			a.Interaction.Cutoff = 1.5
			_, err := sim.New(d, clock, []physics.Agent{a}, sim.Options{Threads: 1, Logger: quiet})
			Expect(err).To(MatchError(dynamo.ErrInvalidDomain))
		})

		It("rejects agents outside the domain", func() {
			d, _ := domain.NewSquare(30, 3)
			clock, _ := sim.NewClock(0, 0.01, []float64{1})
			_, err := sim.New(d, clock, []physics.Agent{agent(1, 30, 1, 0, 0, 1)}, sim.Options{Threads: 1, Logger: quiet})
			Expect(err).To(MatchError(dynamo.ErrOutOfBounds))
		})

		It("requires at least one thread", func() {
			d, _ := domain.NewSquare(30, 3)
			clock, _ := sim.NewClock(0, 0.01, []float64{1})
			_, err := sim.New(d, clock, nil, sim.Options{Threads: 0, Logger: quiet})
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})
	})

	Describe("stepping", func() {
		It("produces bitwise identical results for any thread count", func() {
			var results [][]physics.Agent
			for _, threads := range []int{1, 2, 4, 7} {
				s := newScheduler(cluster(200, 42), 0.002, []float64{1}, sim.Options{Threads: threads})
				Expect(s.Run(context.Background())).To(Succeed())
				results = append(results, s.Agents())
			}
			for _, r := range results[1:] {
				Expect(r).To(Equal(results[0]))
			}
		})

		It("keeps every agent in the voxel that contains it", func() {
			s := newScheduler(cluster(200, 7), 0.01, []float64{5}, sim.Options{Threads: 4})
			for !s.Clock().Done() {
				Expect(s.Step()).To(Succeed())
				Expect(s.CheckVoxelInvariant()).To(Succeed())
			}
			Expect(s.Stats().Steps).To(Equal(uint64(500)))
		})

		It("migrates an agent that crosses a voxel boundary", func() {
			s := newScheduler([]physics.Agent{agent(3, 9.995, 5, 1, 0, 0)}, 0.01, []float64{1}, sim.Options{})
			Expect(s.VoxelAgents(0)).To(Equal([]uint64{3}))

			Expect(s.Step()).To(Succeed())
			Expect(s.VoxelAgents(0)).To(BeEmpty())
			Expect(s.VoxelAgents(1)).To(Equal([]uint64{3}))
			Expect(s.Agents()[0].Voxel).To(Equal(1))
			Expect(s.Stats().Migrations).To(Equal(uint64(1)))
		})

		It("conserves momentum of an undamped pair interacting across voxels", func() {
			agents := []physics.Agent{
				agent(0, 9.6, 15, 0, 0, 0),
				agent(1, 10.4, 15, 0, 0, 0),
			}
			s := newScheduler(agents, 0.001, []float64{0.5}, sim.Options{Threads: 2})
			Expect(s.Run(context.Background())).To(Succeed())

			out := s.Agents()
			p := dynamo.Vec{}
			for _, a := range out {
				m := a.Mechanics.Momentum()
				p.X += m.X
				p.Y += m.Y
			}
			Expect(p.X).To(BeNumerically("~", 0, 1e-12))
			Expect(p.Y).To(BeNumerically("~", 0, 1e-12))
			Expect(out[0].Mechanics.Vel.X).To(BeNumerically("<", 0))
			Expect(out[1].Mechanics.Vel.X).To(BeNumerically(">", 0))
		})

		It("leaves free agents moving in straight lines", func() {
			agents := []physics.Agent{
				agent(0, 5, 5, 1, 0.5, 0),
				agent(1, 25, 25, -1, -0.5, 0),
			}
			s := newScheduler(agents, 0.01, []float64{1}, sim.Options{})
			Expect(s.Run(context.Background())).To(Succeed())

			out := s.Agents()
			Expect(out[0].Mechanics.Vel).To(Equal(dynamo.Vec{X: 1, Y: 0.5}))
			Expect(out[0].Mechanics.Pos.X).To(BeNumerically("~", 6, 1e-9))
			Expect(out[1].Mechanics.Pos.Y).To(BeNumerically("~", 24.5, 1e-9))
		})

		It("aborts on a tunneling agent without touching any state", func() {
			agents := []physics.Agent{
				agent(0, 5, 5, 0, 0, 1),
				agent(9, 15, 15, 1e6, 0, 0),
			}
			s := newScheduler(agents, 0.01, []float64{1}, sim.Options{Threads: 2})
			before := s.Agents()

			err := s.Step()
			Expect(err).To(MatchError(dynamo.ErrOutOfBounds))

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.AgentID).To(Equal(uint64(9)))
			Expect(simErr.Step).To(BeZero())

			Expect(s.Agents()).To(Equal(before))
			Expect(s.Clock().Iteration()).To(BeZero())
			Expect(s.CheckVoxelInvariant()).To(Succeed())
		})
	})

	Describe("dt sanity check", func() {
		warnings := func(agents []physics.Agent, dt float64, points []float64) int {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
			s := newScheduler(agents, dt, points, sim.Options{Threads: 2, Logger: logger})
			Expect(s.Run(context.Background())).To(Succeed())
			return strings.Count(buf.String(), "lower dt")
		}

		It("warns once when agents cross more than half a voxel per step", func() {
			// 6 per step against a voxel edge of 10, bouncing between the walls
			Expect(warnings([]physics.Agent{agent(0, 1, 15, 6, 0, 0)}, 1, savePoints(10))).To(Equal(1))
		})

		It("stays quiet for slow agents", func() {
			Expect(warnings([]physics.Agent{agent(0, 1, 15, 1, 0, 0)}, 0.01, []float64{1})).To(BeZero())
		})
	})

	Describe("running", func() {
		It("writes one complete snapshot per save point", func() {
			w := sim.NewMemoryWriter()
			s := newScheduler(cluster(200, 1), 0.01, savePoints(20), sim.Options{Threads: 4, Writer: w})
			Expect(s.Run(context.Background())).To(Succeed())
			Expect(s.Phase()).To(Equal(sim.PhaseTerminal))

			snaps := w.Snapshots()
			Expect(snaps).To(HaveLen(21))
			for i, snap := range snaps {
				Expect(snap.Time).To(BeNumerically("~", float64(i), 1e-9))
				if i > 0 {
					Expect(snap.Time).To(BeNumerically(">", snaps[i-1].Time))
				}
				ids := make(map[uint64]struct{}, len(snap.Agents))
				for _, a := range snap.Agents {
					ids[a.ID] = struct{}{}
				}
				Expect(ids).To(HaveLen(200))
			}
			Expect(s.Stats().Snapshots).To(Equal(uint64(21)))
		})

		It("hands out snapshots that later steps do not mutate", func() {
			w := sim.NewMemoryWriter()
			agents := []physics.Agent{agent(0, 5, 5, 1, 0, 0)}
			s := newScheduler(agents, 0.1, []float64{0, 1}, sim.Options{Writer: w})
			Expect(s.Run(context.Background())).To(Succeed())

			snaps := w.Snapshots()
			Expect(snaps).To(HaveLen(2))
			Expect(snaps[0].Agents[0].Mechanics.Pos.X).To(Equal(5.0))
			Expect(snaps[1].Agents[0].Mechanics.Pos.X).To(BeNumerically("~", 6, 1e-9))
		})

		It("fails with a storage error when the writer fails", func() {
			diskFull := errors.New("disk full")
			w := sim.WriterFunc(func(context.Context, sim.Snapshot) error { return diskFull })
			s := newScheduler(cluster(10, 1), 0.01, []float64{0, 1}, sim.Options{Writer: w})

			err := s.Run(context.Background())
			Expect(err).To(MatchError(dynamo.ErrStorage))
			Expect(err).To(MatchError(diskFull))

			var storageErr *dynamo.StorageError
			Expect(errors.As(err, &storageErr)).To(BeTrue())
			Expect(storageErr.Time).To(BeZero())
			Expect(s.Stats().Steps).To(BeZero())
		})

		It("reports progress after every step", func() {
			var calls, last, total uint64
			progress := sim.ProgressFunc(func(step, n uint64) {
				calls++
				last, total = step, n
			})
			s := newScheduler(cluster(10, 1), 0.01, []float64{1}, sim.Options{Progress: progress})
			Expect(s.Run(context.Background())).To(Succeed())
			Expect(calls).To(Equal(uint64(100)))
			Expect(last).To(Equal(total))
		})

		It("stops between steps when the context is cancelled", func() {
			w := sim.NewMemoryWriter()
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			s := newScheduler(cluster(10, 1), 0.01, []float64{0, 1}, sim.Options{Writer: w})
			Expect(s.Run(ctx)).To(MatchError(context.Canceled))
			Expect(w.Snapshots()).To(HaveLen(1))
			Expect(s.Clock().Iteration()).To(BeZero())
		})
	})
})
