package workers

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"smoothy/internal/metrics"
)

// Slots bounds how many jobs run their ffmpeg passes at once.
type Slots struct {
	sem   *semaphore.Weighted
	size  int64
	inUse atomic.Int64
}

// NewSlots returns a pool with n slots. n < 1 is treated as 1.
func NewSlots(n int) *Slots {
	if n < 1 {
		n = 1
	}
	return &Slots{sem: semaphore.NewWeighted(int64(n)), size: int64(n)}
}

// Acquire waits for a free slot or for ctx to end. The returned release
// func must be called exactly once when err is nil.
func (s *Slots) Acquire(ctx context.Context) (release func(), err error) {
	start := time.Now()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, context.Cause(ctx)
	}
	metrics.JobSlotWaitDuration.Observe(time.Since(start).Seconds())
	s.inUse.Add(1)

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			s.inUse.Add(-1)
			s.sem.Release(1)
		}
	}, nil
}

// Size returns the total number of slots.
func (s *Slots) Size() int {
	return int(s.size)
}

// InUse returns how many slots are currently held.
func (s *Slots) InUse() int {
	return int(s.inUse.Load())
}
