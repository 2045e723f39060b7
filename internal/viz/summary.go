package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/san-kum/agentsim/internal/experiment"
)

// RenderSummary lays out the stats and final metrics of a run.
func RenderSummary(res *experiment.Result) string {
	var b strings.Builder

	b.WriteString(Title.Render("simulation finished") + "\n")
	if res.RunID != "" {
		row(&b, "run", res.RunID)
	}
	row(&b, "elapsed", res.Elapsed.Round(time.Millisecond).String())
	row(&b, "steps", fmt.Sprint(res.Stats.Steps))
	row(&b, "snapshots", fmt.Sprint(res.Stats.Snapshots))
	row(&b, "migrations", fmt.Sprint(res.Stats.Migrations))
	row(&b, "rebalances", fmt.Sprint(res.Stats.Rebalances))
	row(&b, "max speed", fmt.Sprintf("%.4g", res.Stats.MaxSpeed))

	if res.Recorder != nil {
		b.WriteString(Rule(48) + "\n")
		for _, name := range res.Recorder.Names() {
			series := res.Recorder.Series(name)
			row(&b, name, fmt.Sprintf("%-12.6g %s", res.Metrics[name], Sparkline(series, 21)))
		}
	}

	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%s %s\n", MetricLabel.Render(fmt.Sprintf("%-18s", label)), MetricValue.Render(value))
}
