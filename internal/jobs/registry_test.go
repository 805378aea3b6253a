package jobs

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCreateGeneratesUUID(t *testing.T) {
	r := NewRegistry()
	job, err := r.Create("", "stabilize")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := uuid.Parse(job.ID); err != nil {
		t.Errorf("generated id %q is not a UUID", job.ID)
	}
	if job.Stage() != StageQueued {
		t.Errorf("Stage = %q, want queued", job.Stage())
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestCreateClientID(t *testing.T) {
	r := NewRegistry()
	id := "6F9619FF-8B86-D011-B42D-00CF4FC964FF"

	job, err := r.Create(id, "blend")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if job.ID != "6f9619ff-8b86-d011-b42d-00cf4fc964ff" {
		t.Errorf("ID = %q, want canonical lowercase form", job.ID)
	}

	if _, err := r.Create(id, "blend"); !errors.Is(err, ErrJobExists) {
		t.Errorf("expected ErrJobExists, got %v", err)
	}

	if _, err := r.Create("not-a-uuid", "blend"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
}

func TestProgressUnknownIsZero(t *testing.T) {
	r := NewRegistry()
	if got := r.Progress("missing"); got != 0 {
		t.Errorf("Progress(missing) = %d, want 0", got)
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	job, _ := r.Create("", "convert")
	job.SetStage(StageStreaming)

	r.Remove(job.ID)
	r.Remove(job.ID)

	if _, ok := r.Get(job.ID); ok {
		t.Error("job still present after Remove")
	}
	if got := r.Progress(job.ID); got != 0 {
		t.Errorf("Progress after Remove = %d, want 0", got)
	}
}

func TestStageWindows(t *testing.T) {
	tests := []struct {
		stage    Stage
		fraction float64
		want     int
	}{
		{StageUploading, 0.5, 10},
		{StageUploading, 1, 20},
		{StageProbing, 0, 20},
		{StageDetecting, 0.5, 37},
		{StageTransforming, 0.5, 72},
		{StageEncoding, 0.5, 60},
		{StageStreaming, 1, 100},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			job := &Job{}
			job.SetStage(tt.stage)
			job.Report(tt.fraction)
			if got := job.Progress(); got != tt.want {
				t.Errorf("Progress = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgressIsMonotonicAndCapped(t *testing.T) {
	job := &Job{}
	job.SetStage(StageEncoding)
	job.Report(0.8)
	high := job.Progress()

	job.Report(0.1)
	if got := job.Progress(); got != high {
		t.Errorf("progress went backwards: %d -> %d", high, got)
	}

	// An earlier stage cannot pull progress down either.
	job.SetStage(StageUploading)
	if got := job.Progress(); got != high {
		t.Errorf("SetStage lowered progress: %d -> %d", high, got)
	}

	job.SetStage(StageStreaming)
	job.Report(5)
	job.Complete()
	if got := job.Progress(); got != 100 {
		t.Errorf("Progress = %d, want 100", got)
	}
}

func TestSnapshotOrdering(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, _ := r.Create("", "stabilize")
	second, _ := r.Create("", "blend")
	second.SetStage(StageProbing)

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(Snapshot) = %d, want 2", len(snap))
	}
	if snap[0].ID != first.ID || snap[1].ID != second.ID {
		t.Errorf("unexpected order: %+v", snap)
	}
	if snap[1].Stage != StageProbing || snap[1].Progress != 20 {
		t.Errorf("snapshot = %+v", snap[1])
	}
}

func TestConcurrentJobsAreIndependent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	ids := make([]string, 20)

	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, err := r.Create("", "stabilize")
			if err != nil {
				t.Errorf("Create() error: %v", err)
				return
			}
			ids[i] = job.ID
			job.SetStage(StageEncoding)
			job.Report(float64(i) / 20)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		want := int(math.Floor(25 + (95-25)*(float64(i)/20)))
		if got := r.Progress(id); got != want {
			t.Errorf("job %d progress = %d, want %d", i, got, want)
		}
	}

	for _, id := range ids {
		r.Remove(id)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after removing all", r.Len())
	}
}
