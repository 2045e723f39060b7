package viz

import (
	"math"

	"github.com/san-kum/agentsim/internal/physics"
)

// RenderAgents draws the agent positions of a square domain of the given
// size onto a braille canvas of w x h cells, with dashed voxel boundaries.
func RenderAgents(agents []physics.Agent, size float64, voxels, w, h int) string {
	c := NewCanvas(w, h)
	sw, sh := c.Dots()

	project := func(x, y float64) (int, int) {
		px := int(math.Floor(x / size * float64(sw)))
		// terminal rows grow downwards
		py := sh - 1 - int(math.Floor(y/size*float64(sh)))
		return px, py
	}

	for i := 1; i < voxels; i++ {
		edge := float64(i) * size / float64(voxels)
		x, _ := project(edge, 0)
		_, y := project(0, edge)
		c.VLine(x, 0, sh-1, 2)
		c.HLine(y, 0, sw-1, 2)
	}
	c.Frame()

	for i := range agents {
		p := agents[i].Mechanics.Pos
		c.Set(project(p.X, p.Y))
	}
	return AgentDots.Render(c.String())
}
