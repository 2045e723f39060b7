package metrics

import (
	"math"

	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
	"github.com/san-kum/agentsim/internal/sim"
)

type KineticEnergy struct {
	name  string
	value float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(snap sim.Snapshot) {
	k.value = kinetic(snap.Agents)
}

func (k *KineticEnergy) Value() float64 { return k.value }

func (k *KineticEnergy) Reset() { k.value = 0 }

// PotentialEnergy sums the bounded Lennard-Jones energy over all pairs
// within cutoff.
type PotentialEnergy struct {
	name  string
	value float64
}

func NewPotentialEnergy() *PotentialEnergy {
	return &PotentialEnergy{name: "potential_energy"}
}

func (p *PotentialEnergy) Name() string { return p.name }

func (p *PotentialEnergy) Observe(snap sim.Snapshot) {
	p.value = potential(snap.Agents)
}

func (p *PotentialEnergy) Value() float64 { return p.value }

func (p *PotentialEnergy) Reset() { p.value = 0 }

// EnergyDrift is the largest relative change of total energy seen since
// the first observed snapshot.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(snap sim.Snapshot) {
	energy := kinetic(snap.Agents) + potential(snap.Agents)

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

func kinetic(agents []physics.Agent) float64 {
	total := 0.0
	for i := range agents {
		total += agents[i].Mechanics.KineticEnergy()
	}
	return total
}

func potential(agents []physics.Agent) float64 {
	total := 0.0
	for i := range agents {
		a := &agents[i]
		for j := i + 1; j < len(agents); j++ {
			b := &agents[j]
			r := dynamo.Distance(a.Mechanics.Pos, b.Mechanics.Pos)
			total += a.Interaction.Mix(b.Interaction).Potential(r)
		}
	}
	return total
}
