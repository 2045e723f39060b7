package sim

// partition is the contiguous voxel range [start, end) owned by one worker.
type partition struct {
	start, end int
}

// partitionVoxels splits voxels into n contiguous ranges with roughly equal
// agent counts. Ranges may be empty when there are more workers than voxels.
func partitionVoxels(counts []int, n int) []partition {
	total := 0
	for _, c := range counts {
		total += c
	}

	parts := make([]partition, n)
	start, cum := 0, 0
	for p := 0; p < n; p++ {
		end := start
		if p == n-1 {
			end = len(counts)
		} else {
			target := total * (p + 1) / n
			for end < len(counts) && cum+counts[end] <= target {
				cum += counts[end]
				end++
			}
			// a single heavy voxel still has to go somewhere
			if end == start && end < len(counts) && counts[end] > 0 {
				cum += counts[end]
				end++
			}
		}
		parts[p] = partition{start: start, end: end}
		start = end
	}
	return parts
}

// imbalanced reports whether the busiest partition carries more than 25%
// above the ideal load.
func imbalanced(parts []partition, counts []int) bool {
	if len(parts) < 2 {
		return false
	}
	total, busiest := 0, 0
	for _, p := range parts {
		load := 0
		for v := p.start; v < p.end; v++ {
			load += counts[v]
		}
		total += load
		busiest = max(busiest, load)
	}
	ideal := float64(total) / float64(len(parts))
	return total > 0 && float64(busiest) > 1.25*ideal+1
}
