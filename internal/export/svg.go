package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/agentsim/internal/sim"
)

const svgHeader = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`

// frame maps domain coordinates of a square of edge size onto a square
// image of px pixels, y pointing up.
type frame struct {
	size float64
	px   int
}

func (f frame) x(v float64) float64 { return v / f.size * float64(f.px) }
func (f frame) y(v float64) float64 { return float64(f.px) - v/f.size*float64(f.px) }
func (f frame) scale(v float64) float64 {
	return v / f.size * float64(f.px)
}

func writeGrid(sb *strings.Builder, f frame, voxels int) {
	sb.WriteString(`<g stroke="#333355" stroke-width="1" stroke-dasharray="4 4">` + "\n")
	for i := 1; i < voxels; i++ {
		edge := float64(i) * f.size / float64(voxels)
		fmt.Fprintf(sb, `<line x1="%.1f" y1="0" x2="%.1f" y2="%d"/>`+"\n", f.x(edge), f.x(edge), f.px)
		fmt.Fprintf(sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f"/>`+"\n", f.y(edge), f.px, f.y(edge))
	}
	sb.WriteString("</g>\n")
}

// SnapshotSVG draws every agent of a snapshot as a disc of diameter sigma
// over the voxel grid.
func SnapshotSVG(snap sim.Snapshot, size float64, voxels, px int) string {
	f := frame{size: size, px: px}

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, px, px, px, px)
	writeGrid(&sb, f, voxels)

	sb.WriteString(`<g fill="#00ff88" fill-opacity="0.7">` + "\n")
	for _, a := range snap.Agents {
		p := a.Mechanics.Pos
		fmt.Fprintf(&sb, `<circle cx="%.2f" cy="%.2f" r="%.2f"><title>%d</title></circle>`+"\n",
			f.x(p.X), f.y(p.Y), f.scale(a.Interaction.Sigma/2), a.ID)
	}
	fmt.Fprintf(&sb, `</g>
<text x="8" y="20" fill="#888899" font-family="monospace" font-size="14">t = %g (iteration %d)</text>
</svg>
`, snap.Time, snap.Iteration)
	return sb.String()
}

// TrajectorySVG traces one agent across a series of snapshots. It returns
// an empty string when the agent appears in fewer than two of them.
func TrajectorySVG(snaps []sim.Snapshot, id uint64, size float64, voxels, px int, strokeColor string) string {
	f := frame{size: size, px: px}

	var points []string
	for _, snap := range snaps {
		for _, a := range snap.Agents {
			if a.ID == id {
				points = append(points, fmt.Sprintf("%.1f,%.1f", f.x(a.Mechanics.Pos.X), f.y(a.Mechanics.Pos.Y)))
				break
			}
		}
	}
	if len(points) < 2 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, px, px, px, px)
	writeGrid(&sb, f, voxels)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M%s"/>
</svg>
`, strokeColor, strings.Join(points, " L"))
	return sb.String()
}
