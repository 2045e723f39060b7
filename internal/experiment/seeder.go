package experiment

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/san-kum/agentsim/internal/config"
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
)

// maxPlacementAttempts bounds the rejection sampling of one position.
const maxPlacementAttempts = 10000

// Seeder draws initial agent states from a seeded PCG source.
type Seeder struct {
	rng *rand.Rand
}

func NewSeeder(seed uint64) *Seeder {
	return &Seeder{rng: rand.New(rand.NewSource(seed))}
}

// Uniform draws from [lo, hi). A draw that rounds up to hi is clamped to
// the largest float below it.
func (s *Seeder) Uniform(lo, hi float64) (float64, error) {
	if !(lo < hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, &dynamo.RngError{Reason: fmt.Sprintf("empty or unbounded range [%g, %g)", lo, hi)}
	}
	x := lo + (hi-lo)*s.rng.Float64()
	if x >= hi {
		x = math.Nextafter(hi, lo)
	}
	if math.IsNaN(x) {
		return 0, &dynamo.RngError{Reason: fmt.Sprintf("draw from [%g, %g) is NaN", lo, hi)}
	}
	return x, nil
}

// Position draws a point in [0, size) x [0, size).
func (s *Seeder) Position(size float64) (dynamo.Vec, error) {
	x, err := s.Uniform(0, size)
	if err != nil {
		return dynamo.Vec{}, err
	}
	y, err := s.Uniform(0, size)
	if err != nil {
		return dynamo.Vec{}, err
	}
	return dynamo.Vec{X: x, Y: y}, nil
}

// Velocity draws a vector of the given length in a uniformly random
// direction.
func (s *Seeder) Velocity(speed float64) (dynamo.Vec, error) {
	if speed == 0 {
		return dynamo.Vec{}, nil
	}
	angle, err := s.Uniform(0, 2*math.Pi)
	if err != nil {
		return dynamo.Vec{}, err
	}
	return dynamo.Vec{X: speed * math.Cos(angle), Y: speed * math.Sin(angle)}, nil
}

// SeedAgents places cfg.NAgents agents uniformly over the domain, rejecting
// positions closer than cfg.MinSeparation to an already placed agent. IDs
// are the creation indices.
func SeedAgents(cfg *config.Config, s *Seeder) ([]physics.Agent, error) {
	template := physics.Agent{
		Mechanics: physics.Mechanics{
			Damping: cfg.Agent.Damping,
			Mass:    cfg.Agent.Mass,
		},
		Interaction: cfg.Interaction(),
	}

	agents := make([]physics.Agent, 0, cfg.NAgents)
	for i := 0; i < cfg.NAgents; i++ {
		a := template
		a.ID = uint64(i)

		pos, err := place(cfg, s, agents)
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
		vel, err := s.Velocity(cfg.Agent.InitialSpeed)
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
		a.Mechanics.Pos, a.Mechanics.Vel = pos, vel
		agents = append(agents, a)
	}
	return agents, nil
}

func place(cfg *config.Config, s *Seeder, placed []physics.Agent) (dynamo.Vec, error) {
	for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
		pos, err := s.Position(cfg.DomainSize)
		if err != nil {
			return pos, err
		}
		if cfg.MinSeparation <= 0 || !crowded(pos, placed, cfg.MinSeparation) {
			return pos, nil
		}
	}
	return dynamo.Vec{}, &dynamo.RngError{
		Reason: fmt.Sprintf("no free position after %d attempts; lower n_agents or min_separation", maxPlacementAttempts),
	}
}

func crowded(pos dynamo.Vec, placed []physics.Agent, minSep float64) bool {
	for i := range placed {
		if dynamo.Distance(pos, placed[i].Mechanics.Pos) < minSep {
			return true
		}
	}
	return false
}
