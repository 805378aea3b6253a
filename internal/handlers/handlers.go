package handlers

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"smoothy/internal/history"
	"smoothy/internal/jobs"
	"smoothy/internal/pipeline"
	"smoothy/internal/scratch"
	"smoothy/internal/streaming"
	"smoothy/internal/workers"
)

// Config holds the request limits applied by the handlers.
type Config struct {
	MaxUploadBytes int64
	UploadTimeout  time.Duration
	RequestTimeout time.Duration
	Streaming      streaming.Config
	// Tools are the executables that must resolve for /readyz to pass.
	Tools []string
}

// Default request limits.
const (
	DefaultMaxUploadBytes = 100 << 20
	DefaultRequestTimeout = 5 * time.Minute
)

type Handlers struct {
	registry *jobs.Registry
	pipeline *pipeline.Pipeline
	scratch  *scratch.Manager
	slots    *workers.Slots
	history  *history.Store
	config   Config

	lookPath func(string) (string, error)

	mu     sync.Mutex
	active int
	idle   chan struct{}
}

// New wires the handlers. store may be nil when history is disabled.
func New(registry *jobs.Registry, pipe *pipeline.Pipeline, ws *scratch.Manager, slots *workers.Slots, store *history.Store, config Config) *Handlers {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.Streaming.ChunkSize <= 0 {
		config.Streaming = streaming.DefaultConfig()
	}
	if slots == nil {
		slots = workers.NewSlots(workers.DefaultJobSlots())
	}
	return &Handlers{
		registry: registry,
		pipeline: pipe,
		scratch:  ws,
		slots:    slots,
		history:  store,
		config:   config,
		lookPath: exec.LookPath,
	}
}

func (h *Handlers) begin() {
	h.mu.Lock()
	h.active++
	h.mu.Unlock()
}

func (h *Handlers) end() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active--
	if h.active == 0 && h.idle != nil {
		close(h.idle)
		h.idle = nil
	}
}

// Wait blocks until no upload is being handled or ctx ends. Shutdown uses it
// so that workspaces are removed and history is written before exit.
func (h *Handlers) Wait(ctx context.Context) error {
	h.mu.Lock()
	if h.active == 0 {
		h.mu.Unlock()
		return nil
	}
	if h.idle == nil {
		h.idle = make(chan struct{})
	}
	idle := h.idle
	h.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
