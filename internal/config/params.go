package config

import (
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/agentsim/internal/dynamo"
)

// params maps the tunable names accepted by SetParam to their fields.
// Integer fields are set from the rounded value.
var params = map[string]func(c *Config, v float64){
	"n_agents":       func(c *Config, v float64) { c.NAgents = int(math.Round(v)) },
	"domain_size":    func(c *Config, v float64) { c.DomainSize = v },
	"n_voxels":       func(c *Config, v float64) { c.NVoxels = int(math.Round(v)) },
	"n_threads":      func(c *Config, v float64) { c.NThreads = int(math.Round(v)) },
	"dt":             func(c *Config, v float64) { c.Dt = v },
	"t_end":          func(c *Config, v float64) { c.TEnd = v },
	"save_interval":  func(c *Config, v float64) { c.SaveInterval = v },
	"seed":           func(c *Config, v float64) { c.Seed = uint64(math.Round(v)) },
	"min_separation": func(c *Config, v float64) { c.MinSeparation = v },
	"damping":        func(c *Config, v float64) { c.Agent.Damping = v },
	"mass":           func(c *Config, v float64) { c.Agent.Mass = v },
	"epsilon":        func(c *Config, v float64) { c.Agent.Epsilon = v },
	"sigma":          func(c *Config, v float64) { c.Agent.Sigma = v },
	"bound":          func(c *Config, v float64) { c.Agent.Bound = v },
	"cutoff":         func(c *Config, v float64) { c.Agent.Cutoff = v },
	"initial_speed":  func(c *Config, v float64) { c.Agent.InitialSpeed = v },
}

// SetParam sets a numeric parameter by its yaml name. Setting t_end or
// save_interval drops an explicit save point list.
func (c *Config) SetParam(name string, value float64) error {
	set, ok := params[name]
	if !ok {
		return fmt.Errorf("%w: unknown parameter %q", dynamo.ErrInvalidConfig, name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: parameter %s must be finite", dynamo.ErrInvalidConfig, name)
	}
	if name == "t_end" || name == "save_interval" {
		c.SavePoints = nil
	}
	set(c, value)
	return nil
}

// ApplyParams sets every entry of p in name order.
func (c *Config) ApplyParams(p map[string]float64) error {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := c.SetParam(name, p[name]); err != nil {
			return err
		}
	}
	return nil
}

// ParamNames lists the names accepted by SetParam.
func ParamNames() []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
