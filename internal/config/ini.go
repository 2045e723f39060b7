package config

import (
	"gopkg.in/gcfg.v1"
)

const ExampleIniFile = `[Simulation]

# Number of agents seeded uniformly over the domain.
NAgents = 200
# Edge length of the square domain.
DomainSize = 30
# Voxels per axis. DomainSize / NVoxels must not be smaller than Cutoff.
NVoxels = 3
NThreads = 4

Dt = 0.002
T0 = 0
# Either a save interval up to TEnd...
TEnd = 20
SaveInterval = 1
# ...or explicit save points, one per line.
# SavePoint = 0
# SavePoint = 5

Seed = 0
MinSeparation = 0.8
Integrator = semi-implicit
OutDir = runs

[Agent]

Damping = 1
Mass = 1
Epsilon = 0.01
Sigma = 1
Bound = 0.1
Cutoff = 1
InitialSpeed = 0`

type iniConfig struct {
	Simulation struct {
		NAgents       int
		DomainSize    float64
		NVoxels       int
		NThreads      int
		Dt            float64
		T0            float64
		TEnd          float64
		SaveInterval  float64
		SavePoint     []float64
		Seed          uint64
		MinSeparation float64
		Integrator    string
		OutDir        string
		BatchSize     int
	}
	Agent AgentConfig
}

func loadIni(path string) (*Config, error) {
	cfg := DefaultConfig()

	ic := iniConfig{}
	sim := &ic.Simulation
	sim.NAgents, sim.DomainSize, sim.NVoxels, sim.NThreads = cfg.NAgents, cfg.DomainSize, cfg.NVoxels, cfg.NThreads
	sim.Dt, sim.T0, sim.TEnd, sim.SaveInterval = cfg.Dt, cfg.T0, cfg.TEnd, cfg.SaveInterval
	sim.Seed, sim.Integrator, sim.OutDir, sim.BatchSize = cfg.Seed, cfg.Integrator, cfg.OutDir, cfg.BatchSize
	sim.MinSeparation = cfg.MinSeparation
	ic.Agent = cfg.Agent

	if err := gcfg.ReadFileInto(&ic, path); err != nil {
		return nil, err
	}

	cfg.NAgents, cfg.DomainSize, cfg.NVoxels, cfg.NThreads = sim.NAgents, sim.DomainSize, sim.NVoxels, sim.NThreads
	cfg.Dt, cfg.T0, cfg.TEnd, cfg.SaveInterval = sim.Dt, sim.T0, sim.TEnd, sim.SaveInterval
	cfg.SavePoints = sim.SavePoint
	cfg.Seed, cfg.Integrator, cfg.OutDir, cfg.BatchSize = sim.Seed, sim.Integrator, sim.OutDir, sim.BatchSize
	cfg.MinSeparation = sim.MinSeparation
	cfg.Agent = ic.Agent
	return cfg, nil
}
