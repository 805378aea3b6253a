package jobs

import (
	"math"
	"sync"
	"time"
)

// Job is the in-memory state of one upload.
type Job struct {
	ID        string
	Mode      string
	StartedAt time.Time

	mu       sync.Mutex
	stage    Stage
	progress float64
}

// Snapshot is a point-in-time copy of a job for JSON responses.
type Snapshot struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Stage     Stage     `json:"stage"`
	Progress  int       `json:"progress"`
	StartedAt time.Time `json:"startedAt"`
}

// SetStage moves the job into s and raises progress to the start of its
// window. Progress never moves backwards.
func (j *Job) SetStage(s Stage) {
	start, _ := s.Window()
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stage = s
	j.raiseLocked(start)
}

// Report records fraction (0-1) of the current stage as complete.
func (j *Job) Report(fraction float64) {
	if math.IsNaN(fraction) {
		return
	}
	fraction = math.Max(0, math.Min(1, fraction))

	j.mu.Lock()
	defer j.mu.Unlock()
	start, end := j.stage.Window()
	j.raiseLocked(start + (end-start)*fraction)
}

// Complete marks the job as fully done.
func (j *Job) Complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.raiseLocked(100)
}

func (j *Job) raiseLocked(p float64) {
	if p > 100 {
		p = 100
	}
	if p > j.progress {
		j.progress = p
	}
}

// Stage returns the current stage.
func (j *Job) Stage() Stage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stage
}

// Progress returns the whole-number percentage reported to clients.
func (j *Job) Progress() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return int(math.Floor(j.progress))
}

// Snapshot copies the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:        j.ID,
		Mode:      j.Mode,
		Stage:     j.stage,
		Progress:  int(math.Floor(j.progress)),
		StartedAt: j.StartedAt,
	}
}
