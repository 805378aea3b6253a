package workers

import (
	"runtime"
)

// Count returns a worker count scaled to the CPUs this process may use.
// GOMAXPROCS follows container CPU limits, unlike runtime.NumCPU.
//
// The multiplier adjusts for task characteristics: 1.0 for CPU-bound work
// such as encoding, higher for work that mostly waits. limit caps the result;
// use 0 for no cap.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// DefaultJobSlots is the default number of concurrent ffmpeg jobs: one per
// CPU, at most four.
func DefaultJobSlots() int {
	return ForCPU(4)
}
