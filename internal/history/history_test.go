package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestAddAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := Record{
			JobID:          fmt.Sprintf("job-%d", i),
			Mode:           "stabilize",
			Outcome:        "success",
			StatusCode:     200,
			InputBytes:     1024,
			OutputBytes:    512,
			MediaDuration:  4.5,
			ElapsedSeconds: 12.25,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			FinishedAt:     base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		}
		if err := store.Add(ctx, rec); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(records))
	}
	if records[0].JobID != "job-2" || records[1].JobID != "job-1" {
		t.Errorf("unexpected order: %s, %s", records[0].JobID, records[1].JobID)
	}

	got := records[0]
	if got.StatusCode != 200 || got.InputBytes != 1024 || got.OutputBytes != 512 || got.MediaDuration != 4.5 || got.ElapsedSeconds != 12.25 {
		t.Errorf("record fields not preserved: %+v", got)
	}
	if !got.FinishedAt.Equal(base.Add(2*time.Minute + 30*time.Second)) {
		t.Errorf("FinishedAt = %v", got.FinishedAt)
	}
}

func TestAddDefaultsTimestamps(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, Record{JobID: "a", Mode: "blend", Outcome: "too_long", StatusCode: 400, Error: "video too long"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	records, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len = %d", len(records))
	}
	if records[0].FinishedAt.IsZero() || !records[0].CreatedAt.Equal(records[0].FinishedAt) {
		t.Errorf("timestamps not defaulted: %+v", records[0])
	}
	if records[0].Error != "video too long" {
		t.Errorf("Error = %q", records[0].Error)
	}
}

func TestSummary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	outcomes := []string{"success", "success", "timeout", "tool_error", "success"}
	for i, outcome := range outcomes {
		if err := store.Add(ctx, Record{JobID: fmt.Sprint(i), Mode: "stabilize", Outcome: outcome}); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
	}

	counts, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	if counts["success"] != 3 || counts["timeout"] != 1 || counts["tool_error"] != 1 {
		t.Errorf("Summary = %v", counts)
	}
}

func TestConcurrentAdds(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Add(ctx, Record{JobID: fmt.Sprint(i), Mode: "convert", Outcome: "success"}); err != nil {
				t.Errorf("Add() error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	records, err := store.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(records) != 20 {
		t.Errorf("len = %d, want 20", len(records))
	}
}

func TestNilStoreIsDisabled(t *testing.T) {
	var store *Store
	ctx := context.Background()

	if err := store.Add(ctx, Record{JobID: "x"}); err != nil {
		t.Errorf("Add on nil store: %v", err)
	}
	records, err := store.Recent(ctx, 10)
	if err != nil || records != nil {
		t.Errorf("Recent on nil store = %v, %v", records, err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close on nil store: %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if err := store.Add(context.Background(), Record{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
