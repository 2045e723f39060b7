package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
)

// PlotSeries draws one metric across save points.
func PlotSeries(name string, times, values []float64) string {
	if len(values) == 0 {
		return Subtle.Render(name + ": no data")
	}

	caption := name
	if len(times) == len(values) {
		caption = fmt.Sprintf("%s, t = %g .. %g", name, times[0], times[len(times)-1])
	}
	return asciigraph.Plot(values,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
}
