package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/agentsim/internal/physics"
	"github.com/san-kum/agentsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	cellsDir     = "cells"
	formatDir    = "json"

	DefaultBatchSize = 1000
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID         string             `json:"id"`
	Timestamp  time.Time          `json:"timestamp"`
	Finished   *time.Time         `json:"finished,omitempty"`
	Seed       uint64             `json:"seed"`
	Agents     int                `json:"n_agents"`
	DomainSize float64            `json:"domain_size"`
	Voxels     int                `json:"n_voxels"`
	Threads    int                `json:"n_threads"`
	T0         float64            `json:"t0"`
	Dt         float64            `json:"dt"`
	EndTime    float64            `json:"t_end"`
	SavePoints []float64          `json:"save_points"`
	Integrator string             `json:"integrator"`
	Snapshots  int                `json:"snapshots"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	// Error is set when the run stopped before its end time; Finished
	// stays nil and Snapshots counts the snapshots that were persisted.
	Error string `json:"error,omitempty"`
}

// Status is "finished", "failed" or "incomplete" (no outcome recorded).
func (m *RunMetadata) Status() string {
	switch {
	case m.Finished != nil:
		return "finished"
	case m.Error != "":
		return "failed"
	}
	return "incomplete"
}

// batch is the on-disk unit of a snapshot: a slice of its agents.
type batch struct {
	Iteration uint64          `json:"iteration"`
	Time      float64         `json:"time"`
	Agents    []physics.Agent `json:"agents"`
}

func newRunID(now time.Time) string {
	return fmt.Sprintf("run_%d_%s", now.Unix(), uuid.New().String()[:8])
}

// Run is an open run directory. It implements sim.SnapshotWriter.
type Run struct {
	dir       string
	batchSize int

	mu   sync.Mutex
	meta RunMetadata
}

// NewRun creates the run directory and writes its metadata. An empty ID
// gets a fresh one.
func (s *Store) NewRun(meta RunMetadata) (*Run, error) {
	now := time.Now()
	if meta.ID == "" {
		meta.ID = newRunID(now)
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = now
	}

	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(filepath.Join(dir, cellsDir, formatDir), 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	r := &Run{dir: dir, batchSize: DefaultBatchSize, meta: meta}
	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Run) ID() string { return r.meta.ID }

func (r *Run) Dir() string { return r.dir }

// SetBatchSize sets the number of agents per batch file.
func (r *Run) SetBatchSize(n int) {
	if n > 0 {
		r.batchSize = n
	}
}

// Write persists one snapshot as a directory of batch files. Every file is
// written to a temporary name, synced, then renamed into place.
func (r *Run) Write(ctx context.Context, snap sim.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.dir, cellsDir, formatDir, iterationDir(snap.Iteration))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	for n, start := 0, 0; start < len(snap.Agents) || n == 0; n, start = n+1, start+r.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+r.batchSize, len(snap.Agents))
		b := batch{Iteration: snap.Iteration, Time: snap.Time, Agents: snap.Agents[start:end]}
		if err := writeJSON(filepath.Join(dir, fmt.Sprintf("batch_%08d.json", n)), b); err != nil {
			return err
		}
	}

	r.meta.Snapshots++
	return nil
}

// Finish records the final metrics and completion time.
func (r *Run) Finish(metrics map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.meta.Finished = &now
	r.meta.Metrics = metrics
	return writeJSON(filepath.Join(r.dir, metadataFile), r.meta)
}

// Abort records why the run stopped and the metrics at its last snapshot.
// The run is not marked finished.
func (r *Run) Abort(cause error, metrics map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.meta.Finished = nil
	r.meta.Error = cause.Error()
	r.meta.Metrics = metrics
	return writeJSON(filepath.Join(r.dir, metadataFile), r.meta)
}

func iterationDir(iteration uint64) string {
	return fmt.Sprintf("%020d", iteration)
}

func writeJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	slices.SortFunc(runs, func(a, b RunMetadata) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// Iterations lists the saved iterations of a run in ascending order.
func (s *Store) Iterations(runID string) ([]uint64, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, runID, cellsDir, formatDir))
	if err != nil {
		return nil, err
	}

	iterations := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		k, err := strconv.ParseUint(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		iterations = append(iterations, k)
	}
	slices.Sort(iterations)
	return iterations, nil
}

// LoadSnapshot reassembles the snapshot saved at the given iteration.
func (s *Store) LoadSnapshot(runID string, iteration uint64) (sim.Snapshot, error) {
	dir := filepath.Join(s.baseDir, runID, cellsDir, formatDir, iterationDir(iteration))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return sim.Snapshot{}, err
	}

	snap := sim.Snapshot{Iteration: iteration}
	found := false
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "batch_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return sim.Snapshot{}, err
		}
		var b batch
		if err := json.Unmarshal(data, &b); err != nil {
			return sim.Snapshot{}, fmt.Errorf("%s: %w", name, err)
		}
		snap.Time = b.Time
		snap.Agents = append(snap.Agents, b.Agents...)
		found = true
	}
	if !found {
		return sim.Snapshot{}, fmt.Errorf("run %s: no batches for iteration %d", runID, iteration)
	}

	slices.SortFunc(snap.Agents, func(a, b physics.Agent) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return snap, nil
}

// LoadSnapshots loads every saved snapshot of a run in time order.
func (s *Store) LoadSnapshots(runID string) ([]sim.Snapshot, error) {
	iterations, err := s.Iterations(runID)
	if err != nil {
		return nil, err
	}
	snaps := make([]sim.Snapshot, 0, len(iterations))
	for _, k := range iterations {
		snap, err := s.LoadSnapshot(runID, k)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
