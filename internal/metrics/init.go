package metrics

// Modes, outcomes and passes exported from the first scrape.
var (
	knownModes    = []string{"stabilize", "blend", "convert"}
	knownOutcomes = []string{"success", "bad_request", "too_long", "timeout", "pass_timeout", "tool_error", "canceled", "internal_error"}
	knownPasses   = []string{"detect", "transform", "encode"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, mode := range knownModes {
		JobsStartedTotal.WithLabelValues(mode)
		JobDuration.WithLabelValues(mode)
		for _, outcome := range knownOutcomes {
			JobsFinishedTotal.WithLabelValues(mode, outcome)
		}
	}

	for _, pass := range knownPasses {
		FFmpegPassDuration.WithLabelValues(pass)
		for _, status := range []string{"success", "error", "timeout", "killed"} {
			FFmpegPassesTotal.WithLabelValues(pass, status)
		}
	}

	for _, status := range []string{"success", "error"} {
		WorkspaceCleanupsTotal.WithLabelValues(status)
		HistoryWritesTotal.WithLabelValues(status)
	}
}
