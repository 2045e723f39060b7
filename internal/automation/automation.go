package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/agentsim/internal/config"
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/experiment"
	"github.com/san-kum/agentsim/internal/sim"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset or a config file (defaults when
// neither is set) and overrides single parameters by name.
type ScenarioStep struct {
	Name   string             `yaml:"name"`
	Preset string             `yaml:"preset"`
	Config string             `yaml:"config"`
	Params map[string]float64 `yaml:"params"`
}

// StepResult pairs a step with the config it ran and its outcome.
type StepResult struct {
	Name   string
	Config *config.Config
	Result *experiment.Result
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no steps", dynamo.ErrInvalidConfig, scenario.Name)
	}
	return &scenario, nil
}

// Resolve builds the step's config.
func (s ScenarioStep) Resolve() (*config.Config, error) {
	cfg := config.DefaultConfig()
	switch {
	case s.Preset != "" && s.Config != "":
		return nil, fmt.Errorf("%w: step %q sets both preset and config", dynamo.ErrInvalidConfig, s.Name)
	case s.Preset != "":
		p, ok := config.GetPreset(s.Preset)
		if !ok {
			return nil, fmt.Errorf("%w: unknown preset %q", dynamo.ErrInvalidConfig, s.Preset)
		}
		cfg = p
	case s.Config != "":
		loaded, err := config.Load(s.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyParams(s.Params); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// RunScenario executes all steps in order and stops at the first failure.
// The options are passed to every run.
func RunScenario(ctx context.Context, scenario *Scenario, logger *slog.Logger, opts ...experiment.Option) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		logger.Info("scenario step", "scenario", scenario.Name, "step", name, "index", i+1, "of", len(scenario.Steps))

		cfg, err := step.Resolve()
		if err != nil {
			return results, fmt.Errorf("step %s: %w", name, err)
		}

		res, err := experiment.Run(ctx, cfg, append([]experiment.Option{experiment.WithLogger(logger)}, opts...)...)
		if err != nil {
			return results, fmt.Errorf("step %s: %w", name, err)
		}
		results = append(results, StepResult{Name: name, Config: cfg, Result: res})
	}
	return results, nil
}

// ParameterSweep runs Base once per evenly spaced value of one parameter.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

type SweepResult struct {
	ParamValue float64
	Metrics    map[string]float64
	Stats      sim.Stats
}

// Values returns the swept parameter values. A single step runs ParamMin.
func (s *ParameterSweep) Values() ([]float64, error) {
	if s.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs at least one step", dynamo.ErrInvalidConfig)
	}
	if s.NumSteps == 1 {
		return []float64{s.ParamMin}, nil
	}
	step := (s.ParamMax - s.ParamMin) / float64(s.NumSteps-1)
	values := make([]float64, s.NumSteps)
	for i := range values {
		values[i] = s.ParamMin + float64(i)*step
	}
	values[len(values)-1] = s.ParamMax
	return values, nil
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, logger *slog.Logger) ([]SweepResult, error) {
	values, err := sweep.Values()
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, 0, len(values))
	for i, v := range values {
		cfg := sweep.Base.Clone()
		if err := cfg.SetParam(sweep.ParamName, v); err != nil {
			return results, err
		}

		res, err := experiment.Run(ctx, cfg, experiment.WithLogger(logger))
		if err != nil {
			return results, fmt.Errorf("sweep %s=%g: %w", sweep.ParamName, v, err)
		}
		results = append(results, SweepResult{ParamValue: v, Metrics: res.Metrics, Stats: res.Stats})

		logger.Info("sweep", "param", sweep.ParamName, "value", v, "index", i+1, "of", len(values))
	}
	return results, nil
}

// EnsembleConfig repeats Base with consecutive seeds starting at Seed.
type EnsembleConfig struct {
	Base      *config.Config
	NumTrials int
	Seed      uint64
}

// EnsembleResult is one trial. An unstable trial stopped because an agent
// left the domain or a calculation diverged; Err holds the reason.
type EnsembleResult struct {
	TrialID int
	Seed    uint64
	Stable  bool
	Err     error
	Metrics map[string]float64
}

// RunEnsemble runs every trial. Divergence marks a trial unstable; any
// other error aborts the ensemble.
func RunEnsemble(ctx context.Context, cfg *EnsembleConfig, logger *slog.Logger) ([]EnsembleResult, error) {
	if cfg.NumTrials < 1 {
		return nil, fmt.Errorf("%w: ensemble needs at least one trial", dynamo.ErrInvalidConfig)
	}

	results := make([]EnsembleResult, 0, cfg.NumTrials)
	for trial := 0; trial < cfg.NumTrials; trial++ {
		run := cfg.Base.Clone()
		run.Seed = cfg.Seed + uint64(trial)

		res, err := experiment.Run(ctx, run, experiment.WithLogger(logger))
		r := EnsembleResult{TrialID: trial, Seed: run.Seed, Stable: err == nil}
		switch {
		case err == nil:
			r.Metrics = res.Metrics
		case errors.Is(err, dynamo.ErrOutOfBounds), errors.Is(err, dynamo.ErrCalc):
			r.Err = err
			if res != nil {
				r.Metrics = res.Metrics
			}
		default:
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}
		results = append(results, r)

		if (trial+1)%10 == 0 {
			logger.Info("ensemble", "done", trial+1, "of", cfg.NumTrials)
		}
	}
	return results, nil
}

// EnsembleStats counts stable and unstable trials.
func EnsembleStats(results []EnsembleResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
