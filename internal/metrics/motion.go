package metrics

import (
	"math"

	"github.com/san-kum/agentsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

// Momentum is the magnitude of the total linear momentum.
type Momentum struct {
	name  string
	value float64
}

func NewMomentum() *Momentum {
	return &Momentum{name: "momentum"}
}

func (m *Momentum) Name() string { return m.name }

func (m *Momentum) Observe(snap sim.Snapshot) {
	var p r2.Vec
	for i := range snap.Agents {
		p = r2.Add(p, snap.Agents[i].Mechanics.Momentum())
	}
	m.value = r2.Norm(p)
}

func (m *Momentum) Value() float64 { return m.value }

func (m *Momentum) Reset() { m.value = 0 }

type MeanSpeed struct {
	name  string
	value float64
}

func NewMeanSpeed() *MeanSpeed {
	return &MeanSpeed{name: "mean_speed"}
}

func (m *MeanSpeed) Name() string { return m.name }

func (m *MeanSpeed) Observe(snap sim.Snapshot) {
	if len(snap.Agents) == 0 {
		m.value = 0
		return
	}
	sum := 0.0
	for i := range snap.Agents {
		sum += r2.Norm(snap.Agents[i].Mechanics.Vel)
	}
	m.value = sum / float64(len(snap.Agents))
}

func (m *MeanSpeed) Value() float64 { return m.value }

func (m *MeanSpeed) Reset() { m.value = 0 }

type MaxSpeed struct {
	name  string
	value float64
}

func NewMaxSpeed() *MaxSpeed {
	return &MaxSpeed{name: "max_speed"}
}

func (m *MaxSpeed) Name() string { return m.name }

func (m *MaxSpeed) Observe(snap sim.Snapshot) {
	m.value = 0
	for i := range snap.Agents {
		m.value = math.Max(m.value, r2.Norm(snap.Agents[i].Mechanics.Vel))
	}
}

func (m *MaxSpeed) Value() float64 { return m.value }

func (m *MaxSpeed) Reset() { m.value = 0 }
