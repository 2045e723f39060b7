package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
)

const (
	DefaultAgents       = 200
	DefaultDomainSize   = 30.0
	DefaultVoxels       = 3
	DefaultThreads      = 4
	DefaultDt           = 0.002
	DefaultTEnd         = 20.0
	DefaultSaveInterval = 1.0
	DefaultIntegrator   = "semi-implicit"
	DefaultOutDir       = "runs"
	DefaultBatchSize    = 1000
	DefaultSeparation   = 0.8

	// MaxSavePoints bounds the snapshots generated from save_interval.
	MaxSavePoints = 1_000_000

	DefaultDamping      = 1.0
	DefaultMass         = 1.0
	DefaultEpsilon      = 0.01
	DefaultSigma        = 1.0
	DefaultBound        = 0.1
	DefaultCutoff       = 1.0
	DefaultInitialSpeed = 0.0
)

type Config struct {
	NAgents      int       `yaml:"n_agents"`
	DomainSize   float64   `yaml:"domain_size"`
	NVoxels      int       `yaml:"n_voxels"`
	NThreads     int       `yaml:"n_threads"`
	Dt           float64   `yaml:"dt"`
	T0           float64   `yaml:"t0"`
	TEnd         float64   `yaml:"t_end"`
	SaveInterval float64   `yaml:"save_interval"`
	SavePoints   []float64 `yaml:"save_points,omitempty"`
	Seed         uint64    `yaml:"seed"`
	// MinSeparation rejects seeded positions closer than this to an
	// already placed agent. Zero disables the check.
	MinSeparation float64     `yaml:"min_separation"`
	Integrator    string      `yaml:"integrator"`
	OutDir        string      `yaml:"out_dir"`
	BatchSize     int         `yaml:"batch_size"`
	Agent         AgentConfig `yaml:"agent"`
}

// AgentConfig holds the parameters shared by every seeded agent.
type AgentConfig struct {
	Damping      float64 `yaml:"damping"`
	Mass         float64 `yaml:"mass"`
	Epsilon      float64 `yaml:"epsilon"`
	Sigma        float64 `yaml:"sigma"`
	Bound        float64 `yaml:"bound"`
	Cutoff       float64 `yaml:"cutoff"`
	InitialSpeed float64 `yaml:"initial_speed"`
}

func DefaultConfig() *Config {
	return &Config{
		NAgents:       DefaultAgents,
		DomainSize:    DefaultDomainSize,
		NVoxels:       DefaultVoxels,
		NThreads:      DefaultThreads,
		Dt:            DefaultDt,
		TEnd:          DefaultTEnd,
		SaveInterval:  DefaultSaveInterval,
		Integrator:    DefaultIntegrator,
		OutDir:        DefaultOutDir,
		BatchSize:     DefaultBatchSize,
		MinSeparation: DefaultSeparation,
		Agent: AgentConfig{
			Damping:      DefaultDamping,
			Mass:         DefaultMass,
			Epsilon:      DefaultEpsilon,
			Sigma:        DefaultSigma,
			Bound:        DefaultBound,
			Cutoff:       DefaultCutoff,
			InitialSpeed: DefaultInitialSpeed,
		},
	}
}

// Load reads a yaml config, or an ini-style one when the file ends in .ini
// or .gcfg. Unset values keep their defaults.
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".gcfg":
		return loadIni(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Clone() *Config {
	out := *c
	out.SavePoints = slices.Clone(c.SavePoints)
	return &out
}

// Points returns the save points: the explicit list when given, otherwise
// T0, T0+SaveInterval, ... up to TEnd.
func (c *Config) Points() []float64 {
	if len(c.SavePoints) > 0 {
		points := slices.Clone(c.SavePoints)
		slices.Sort(points)
		return points
	}
	n := int(math.Floor((c.TEnd-c.T0)/c.SaveInterval + 1e-9))
	points := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		points = append(points, c.T0+float64(i)*c.SaveInterval)
	}
	return points
}

func (c *Config) Interaction() physics.BoundLennardJones {
	return physics.BoundLennardJones{
		Epsilon: c.Agent.Epsilon,
		Sigma:   c.Agent.Sigma,
		Bound:   c.Agent.Bound,
		Cutoff:  c.Agent.Cutoff,
	}
}

// VoxelSize is the edge length of one voxel.
func (c *Config) VoxelSize() float64 {
	return c.DomainSize / float64(c.NVoxels)
}

func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{dynamo.ErrInvalidConfig}, args...)...)
	}

	switch {
	case c.NAgents < 1:
		return invalid("n_agents must be positive, got %d", c.NAgents)
	case !(c.DomainSize > 0) || math.IsInf(c.DomainSize, 0):
		return invalid("domain_size must be positive, got %g", c.DomainSize)
	case c.NVoxels < 1:
		return invalid("n_voxels must be positive, got %d", c.NVoxels)
	case c.NThreads < 1:
		return invalid("n_threads must be positive, got %d", c.NThreads)
	case !(c.Dt > 0) || math.IsInf(c.Dt, 0):
		return invalid("dt must be positive, got %g", c.Dt)
	case math.IsNaN(c.T0) || math.IsInf(c.T0, 0):
		return invalid("t0 must be finite, got %g", c.T0)
	case !(c.MinSeparation >= 0) || c.MinSeparation >= c.DomainSize:
		return invalid("min_separation must be in [0, domain_size), got %g", c.MinSeparation)
	case c.BatchSize < 0:
		return invalid("batch_size must not be negative, got %d", c.BatchSize)
	case c.Agent.InitialSpeed < 0:
		return invalid("initial_speed must not be negative, got %g", c.Agent.InitialSpeed)
	}

	if len(c.SavePoints) == 0 {
		if !(c.SaveInterval > 0) {
			return invalid("save_interval must be positive, got %g", c.SaveInterval)
		}
		if !(c.TEnd >= c.T0) {
			return invalid("t_end (%g) must not precede t0 (%g)", c.TEnd, c.T0)
		}
		if c.SaveInterval < c.Dt {
			return invalid("save_interval %g is shorter than dt %g", c.SaveInterval, c.Dt)
		}
		if n := (c.TEnd - c.T0) / c.SaveInterval; !(n <= MaxSavePoints) {
			return invalid("%g save points exceed the limit of %d", math.Floor(n)+1, MaxSavePoints)
		}
	}
	for _, s := range c.SavePoints {
		if !(s >= c.T0) || math.IsInf(s, 0) {
			return invalid("save point %g precedes t0 (%g)", s, c.T0)
		}
	}

	if err := c.Interaction().Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	m := physics.Mechanics{Damping: c.Agent.Damping, Mass: c.Agent.Mass}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	return nil
}
