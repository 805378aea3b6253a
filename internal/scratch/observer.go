package scratch

// Observer records workspace metrics. The metrics package provides the
// Prometheus implementation, which keeps scratch free of that import.
type Observer interface {
	ObserveCleanup(err error)
	ObserveCleanupRetry()
	ObserveSwept(count int)
}

// defaultObserver is set once at startup. If nil, recording is skipped.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}
