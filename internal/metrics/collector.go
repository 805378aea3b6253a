package metrics

import (
	"time"

	"smoothy/internal/logging"
)

// UsageProvider reports how much the work directory currently holds.
type UsageProvider interface {
	Usage() (bytes int64, dirs int, err error)
}

// Collector periodically samples work directory usage into gauges. Leaked
// workspaces show up here as a directory count that never returns to zero.
type Collector struct {
	provider UsageProvider
	interval time.Duration
	stopChan chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider UsageProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	size, dirs, err := c.provider.Usage()
	if err != nil {
		logging.Debug("Work directory usage sample failed: %v", err)
		return
	}

	WorkspaceBytes.Set(float64(size))
	WorkspaceDirectories.Set(float64(dirs))

	logging.Debug("Metrics collected: workspace_bytes=%d, workspace_dirs=%d", size, dirs)
}
