package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/agentsim/internal/sim"
)

var csvHeader = []string{"iteration", "time", "id", "x", "y", "vx", "vy", "voxel"}

// ExportCSV writes one row per agent per snapshot.
func ExportCSV(w io.Writer, snaps []sim.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, snap := range snaps {
		iter := strconv.FormatUint(snap.Iteration, 10)
		t := strconv.FormatFloat(snap.Time, 'f', 6, 64)
		for _, a := range snap.Agents {
			m := a.Mechanics
			row := []string{
				iter,
				t,
				strconv.FormatUint(a.ID, 10),
				strconv.FormatFloat(m.Pos.X, 'g', -1, 64),
				strconv.FormatFloat(m.Pos.Y, 'g', -1, 64),
				strconv.FormatFloat(m.Vel.X, 'g', -1, 64),
				strconv.FormatFloat(m.Vel.Y, 'g', -1, 64),
				strconv.Itoa(a.Voxel),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

type ExportData struct {
	Run       RunMetadata    `json:"run"`
	Snapshots []sim.Snapshot `json:"snapshots"`
}

// ExportJSON writes a run and its snapshots as one document. A path of "-"
// writes to stdout.
func ExportJSON(path string, meta RunMetadata, snaps []sim.Snapshot) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: meta, Snapshots: snaps})
}
