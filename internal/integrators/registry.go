package integrators

import (
	"fmt"
	"slices"

	"github.com/san-kum/agentsim/internal/dynamo"
)

var registry = map[string]func() Integrator{
	"semi-implicit": func() Integrator { return NewSemiImplicitEuler() },
	"euler":         func() Integrator { return NewEuler() },
}

// Get returns a fresh integrator by name.
func Get(name string) (Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator %q (have %v)", dynamo.ErrInvalidConfig, name, Names())
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
