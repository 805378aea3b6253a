package metrics

import "smoothy/internal/scratch"

// scratchObserver implements scratch.Observer using the workspace metrics
// declared in this package.
type scratchObserver struct{}

// NewScratchObserver creates an observer that records workspace cleanup
// metrics.
func NewScratchObserver() scratch.Observer {
	return &scratchObserver{}
}

func (o *scratchObserver) ObserveCleanup(err error) {
	if err != nil {
		WorkspaceCleanupsTotal.WithLabelValues("error").Inc()
		return
	}
	WorkspaceCleanupsTotal.WithLabelValues("success").Inc()
}

func (o *scratchObserver) ObserveCleanupRetry() {
	WorkspaceCleanupRetries.Inc()
}

func (o *scratchObserver) ObserveSwept(count int) {
	WorkspaceSweptTotal.Add(float64(count))
}
