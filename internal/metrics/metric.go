package metrics

import (
	"context"
	"sync"

	"github.com/san-kum/agentsim/internal/sim"
)

// Metric reduces a snapshot to a single number.
type Metric interface {
	Name() string
	Observe(snap sim.Snapshot)
	Value() float64
	Reset()
}

// Default returns the metrics recorded for every run.
func Default() []Metric {
	return []Metric{
		NewKineticEnergy(),
		NewPotentialEnergy(),
		NewEnergyDrift(),
		NewMomentum(),
		NewMeanSpeed(),
		NewMaxSpeed(),
	}
}

// Recorder observes every snapshot it is handed and keeps one value per
// metric per snapshot. It implements sim.SnapshotWriter.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
	times   []float64
	series  map[string][]float64
}

func NewRecorder(metrics ...Metric) *Recorder {
	if len(metrics) == 0 {
		metrics = Default()
	}
	return &Recorder{
		metrics: metrics,
		series:  make(map[string][]float64, len(metrics)),
	}
}

func (r *Recorder) Write(_ context.Context, snap sim.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.times = append(r.times, snap.Time)
	for _, m := range r.metrics {
		m.Observe(snap)
		r.series[m.Name()] = append(r.series[m.Name()], m.Value())
	}
	return nil
}

func (r *Recorder) Names() []string {
	names := make([]string, len(r.metrics))
	for i, m := range r.metrics {
		names[i] = m.Name()
	}
	return names
}

func (r *Recorder) Times() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.times...)
}

func (r *Recorder) Series(name string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.series[name]...)
}

// Final returns the value of every metric after the last snapshot.
func (r *Recorder) Final() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]float64, len(r.metrics))
	for _, m := range r.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.metrics {
		m.Reset()
	}
	r.times = nil
	clear(r.series)
}

// Replay feeds stored snapshots through fresh metrics.
func Replay(snaps []sim.Snapshot, metrics ...Metric) *Recorder {
	r := NewRecorder(metrics...)
	for _, snap := range snaps {
		_ = r.Write(context.Background(), snap)
	}
	return r
}
