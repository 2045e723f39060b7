package integrators

import (
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

// SemiImplicitEuler updates the velocity first and moves the agent with
// the new velocity (symplectic Euler).
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (s *SemiImplicitEuler) Name() string { return "semi-implicit" }

func (s *SemiImplicitEuler) Step(m physics.Mechanics, force dynamo.Vec, dt float64, b Boundary) (physics.Mechanics, error) {
	a := acceleration(m, force)
	next := m
	next.Vel = r2.Add(m.Vel, r2.Scale(dt, a))
	next.Pos = r2.Add(m.Pos, r2.Scale(dt, next.Vel))
	return finish(s.Name(), next, b)
}
