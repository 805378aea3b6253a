package jobs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smoothy/internal/metrics"
)

var (
	// ErrInvalidID is returned for client-supplied ids that are not UUIDs.
	ErrInvalidID = errors.New("job id must be a UUID")
	// ErrJobExists is returned when the id belongs to an active job.
	ErrJobExists = errors.New("job id is already active")
)

// Registry tracks active jobs. Jobs are removed as soon as they finish, so
// the registry only ever holds in-flight work.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// ParseID validates a client-supplied id and returns its canonical form.
func ParseID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id.String(), nil
}

// Create registers a new job. An empty id generates a random UUID.
func (r *Registry) Create(id, mode string) (*Job, error) {
	if id == "" {
		id = uuid.NewString()
	} else {
		parsed, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		id = parsed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrJobExists, id)
	}

	job := &Job{
		ID:        id,
		Mode:      mode,
		StartedAt: r.now(),
		stage:     StageQueued,
	}
	r.jobs[id] = job
	metrics.JobsActive.Inc()
	return job, nil
}

// Get returns the active job with id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Progress returns the job's percentage, or 0 for unknown ids.
func (r *Registry) Progress(id string) int {
	job, ok := r.Get(id)
	if !ok {
		return 0
	}
	return job.Progress()
}

// Remove forgets a job. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; ok {
		delete(r.jobs, id)
		metrics.JobsActive.Dec()
	}
}

// Len returns the number of active jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Snapshot returns all active jobs ordered by start time.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	list := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		list = append(list, job)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(list))
	for _, job := range list {
		out = append(out, job.Snapshot())
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].StartedAt.Equal(out[k].StartedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].StartedAt.Before(out[k].StartedAt)
	})
	return out
}
