package integrators

import (
	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

// Euler is the explicit first-order scheme: the position moves with the
// old velocity.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(m physics.Mechanics, force dynamo.Vec, dt float64, b Boundary) (physics.Mechanics, error) {
	a := acceleration(m, force)
	next := m
	next.Pos = r2.Add(m.Pos, r2.Scale(dt, m.Vel))
	next.Vel = r2.Add(m.Vel, r2.Scale(dt, a))
	return finish(e.Name(), next, b)
}
