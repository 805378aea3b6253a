package workers

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCount(t *testing.T) {
	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Tiny multiplier still yields one worker",
			multiplier: 0.01,
			limit:      0,
			minExpect:  1,
			maxExpect:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestDefaultJobSlots(t *testing.T) {
	got := DefaultJobSlots()
	if got < 1 || got > 4 {
		t.Errorf("DefaultJobSlots() = %d, want 1..4", got)
	}
	if want := min(runtime.GOMAXPROCS(0), 4); got != want {
		t.Errorf("DefaultJobSlots() = %d, want %d", got, want)
	}
}

func TestSlotsBoundConcurrency(t *testing.T) {
	slots := NewSlots(2)
	if slots.Size() != 2 {
		t.Fatalf("Size() = %d", slots.Size())
	}

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := slots.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire() error: %v", err)
				return
			}
			defer release()

			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
	if slots.InUse() != 0 {
		t.Errorf("InUse() = %d after all released", slots.InUse())
	}
}

func TestSlotsAcquireHonoursContext(t *testing.T) {
	slots := NewSlots(1)
	release, err := slots.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer release()

	cause := errors.New("request timed out")
	ctx, cancel := context.WithTimeoutCause(context.Background(), 30*time.Millisecond, cause)
	defer cancel()

	if _, err := slots.Acquire(ctx); !errors.Is(err, cause) {
		t.Errorf("expected context cause, got %v", err)
	}
}

func TestSlotsReleaseIsIdempotent(t *testing.T) {
	slots := NewSlots(0)
	release, err := slots.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	release()
	release()

	if slots.InUse() != 0 {
		t.Errorf("InUse() = %d", slots.InUse())
	}

	// A double release must not have freed two slots.
	first, err := slots.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer first()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := slots.Acquire(ctx); err == nil {
		t.Error("second Acquire should block on a single slot")
	}
}
