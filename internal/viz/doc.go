// Package viz renders simulation output in the terminal:
//
//   - [ProgressBar]: Bubble Tea progress display fed by the scheduler
//   - [LogProgress]: slog-based progress for non-interactive runs
//   - [RenderAgents]: braille scatter of one snapshot over the voxel grid
//   - [PlotSeries]: asciigraph line plot of a metric across save points
//   - [RenderSummary]: lipgloss summary of a finished run
package viz
