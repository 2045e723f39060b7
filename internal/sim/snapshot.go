package sim

import (
	"context"
	"sync"

	"github.com/san-kum/agentsim/internal/physics"
)

// Snapshot is a consistent copy of every agent at one clock instant.
type Snapshot struct {
	Iteration uint64          `json:"iteration"`
	Time      float64         `json:"time"`
	Agents    []physics.Agent `json:"agents"`
}

// SnapshotWriter persists snapshots. The scheduler calls Write only between
// steps and treats any error as fatal for the run.
type SnapshotWriter interface {
	Write(ctx context.Context, snap Snapshot) error
}

// WriterFunc adapts a function to SnapshotWriter.
type WriterFunc func(ctx context.Context, snap Snapshot) error

func (f WriterFunc) Write(ctx context.Context, snap Snapshot) error { return f(ctx, snap) }

// MultiWriter hands each snapshot to every writer in order and stops at
// the first failure.
type MultiWriter []SnapshotWriter

func (m MultiWriter) Write(ctx context.Context, snap Snapshot) error {
	for _, w := range m {
		if w == nil {
			continue
		}
		if err := w.Write(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

// MemoryWriter keeps snapshots in memory.
type MemoryWriter struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (m *MemoryWriter) Write(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *MemoryWriter) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.snaps...)
}

// Progress receives (current step, total steps) after every step. It is
// purely observational.
type Progress interface {
	Update(step, total uint64)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(step, total uint64)

func (f ProgressFunc) Update(step, total uint64) { f(step, total) }

// Stats summarizes the work done by a scheduler.
type Stats struct {
	Steps      uint64
	Migrations uint64
	Rebalances uint64
	Snapshots  uint64
	MaxSpeed   float64
}
