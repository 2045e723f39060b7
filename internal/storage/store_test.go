package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/agentsim/internal/dynamo"
	"github.com/san-kum/agentsim/internal/physics"
	"github.com/san-kum/agentsim/internal/sim"
)

func testSnapshot(iteration uint64, t float64, n int) sim.Snapshot {
	agents := make([]physics.Agent, n)
	for i := range agents {
		agents[i] = physics.Agent{
			ID: uint64(i),
			Mechanics: physics.Mechanics{
				Pos:     dynamo.Vec{X: float64(i) + 0.5, Y: t},
				Vel:     dynamo.Vec{X: 0.1, Y: -0.1},
				Damping: 1,
				Mass:    1,
			},
			Interaction: physics.BoundLennardJones{Epsilon: 0.01, Sigma: 1, Bound: 0.1, Cutoff: 1},
			Voxel:       i % 3,
		}
	}
	return sim.Snapshot{Iteration: iteration, Time: t, Agents: agents}
}

func TestStoreWriteLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	run, err := st.NewRun(RunMetadata{Seed: 42, Agents: 25, Dt: 0.01, Integrator: "semi-implicit"})
	if err != nil {
		t.Fatalf("new run failed: %v", err)
	}
	if !strings.HasPrefix(run.ID(), "run_") {
		t.Errorf("unexpected run id %q", run.ID())
	}
	run.SetBatchSize(10)

	ctx := context.Background()
	for i, k := range []uint64{0, 100, 200} {
		if err := run.Write(ctx, testSnapshot(k, float64(i), 25)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := run.Finish(map[string]float64{"kinetic_energy": 1.5}); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	meta, err := st.Load(run.ID())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Seed != 42 || meta.Snapshots != 3 || meta.Finished == nil {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Metrics["kinetic_energy"] != 1.5 {
		t.Errorf("expected kinetic_energy 1.5, got %f", meta.Metrics["kinetic_energy"])
	}

	iterations, err := st.Iterations(run.ID())
	if err != nil {
		t.Fatalf("iterations failed: %v", err)
	}
	if len(iterations) != 3 || iterations[0] != 0 || iterations[2] != 200 {
		t.Errorf("unexpected iterations %v", iterations)
	}

	snap, err := st.LoadSnapshot(run.ID(), 100)
	if err != nil {
		t.Fatalf("load snapshot failed: %v", err)
	}
	if snap.Time != 1 || len(snap.Agents) != 25 {
		t.Fatalf("expected 25 agents at t=1, got %d at t=%g", len(snap.Agents), snap.Time)
	}
	for i, a := range snap.Agents {
		if a.ID != uint64(i) {
			t.Fatalf("agents not in id order: %d at %d", a.ID, i)
		}
	}
	if snap.Agents[24].Mechanics.Pos.X != 24.5 {
		t.Errorf("position not round-tripped: %v", snap.Agents[24].Mechanics.Pos)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	run, err := st.NewRun(RunMetadata{ID: "fixed"})
	if err != nil {
		t.Fatalf("new run failed: %v", err)
	}
	run.SetBatchSize(4)
	if err := run.Write(context.Background(), testSnapshot(7, 0.07, 9)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, "fixed")
	for _, p := range []string{
		filepath.Join(runDir, "metadata.json"),
		filepath.Join(runDir, "cells", "json", "00000000000000000007", "batch_00000000.json"),
		filepath.Join(runDir, "cells", "json", "00000000000000000007", "batch_00000002.json"),
	} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Errorf("%s not created", p)
		}
	}

	leftovers, _ := filepath.Glob(filepath.Join(runDir, "cells", "json", "*", ".tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestStoreList(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "missing"))

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	for i := 0; i < 2; i++ {
		if _, err := st.NewRun(RunMetadata{}); err != nil {
			t.Fatalf("new run failed: %v", err)
		}
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestRunWriteCancelled(t *testing.T) {
	run, err := New(t.TempDir()).NewRun(RunMetadata{})
	if err != nil {
		t.Fatalf("new run failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run.Write(ctx, testSnapshot(0, 0, 3)); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestRunAbort(t *testing.T) {
	st := New(t.TempDir())
	run, err := st.NewRun(RunMetadata{Agents: 3})
	if err != nil {
		t.Fatalf("new run failed: %v", err)
	}
	if err := run.Write(context.Background(), testSnapshot(0, 0, 3)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := run.Abort(dynamo.ErrOutOfBounds, map[string]float64{"kinetic_energy": 2}); err != nil {
		t.Fatalf("abort failed: %v", err)
	}

	meta, err := st.Load(run.ID())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Finished != nil {
		t.Errorf("aborted run marked finished at %v", meta.Finished)
	}
	if meta.Status() != "failed" || meta.Error != dynamo.ErrOutOfBounds.Error() {
		t.Errorf("unexpected status %q, error %q", meta.Status(), meta.Error)
	}
	if meta.Snapshots != 1 || meta.Metrics["kinetic_energy"] != 2 {
		t.Errorf("unexpected metadata %+v", meta)
	}

	if status := (&RunMetadata{}).Status(); status != "incomplete" {
		t.Errorf("expected incomplete, got %q", status)
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	snaps := []sim.Snapshot{testSnapshot(0, 0, 2), testSnapshot(10, 0.1, 2)}
	if err := ExportCSV(&buf, snaps); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv failed: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(records))
	}
	if records[0][0] != "iteration" || records[3][0] != "10" || records[3][2] != "0" {
		t.Errorf("unexpected rows %v", records)
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	if err := ExportJSON(path, RunMetadata{ID: "x"}, []sim.Snapshot{testSnapshot(0, 0, 1)}); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"id": "x"`)) {
		t.Errorf("run metadata missing from export")
	}
}
