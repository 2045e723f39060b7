package config

import "slices"

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"quick": func() *Config {
		c := DefaultConfig()
		c.NAgents = 50
		c.NThreads = 2
		c.Dt = 0.01
		c.TEnd = 2
		c.SaveInterval = 0.5
		return c
	}(),
	"dense": func() *Config {
		c := DefaultConfig()
		c.NAgents = 800
		c.NVoxels = 10
		c.Dt = 0.001
		return c
	}(),
	"gas": func() *Config {
		c := DefaultConfig()
		c.NAgents = 100
		c.Agent.Damping = 0
		c.Agent.InitialSpeed = 2
		c.Dt = 0.001
		c.TEnd = 10
		return c
	}(),
}

// GetPreset returns a copy of the named preset.
func GetPreset(name string) (*Config, bool) {
	cfg, ok := Presets[name]
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
