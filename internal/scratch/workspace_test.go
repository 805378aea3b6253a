package scratch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	cleanups int
	failures int
	retries  int
	swept    int
}

func (o *recordingObserver) ObserveCleanup(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleanups++
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) ObserveCleanupRetry() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func (o *recordingObserver) ObserveSwept(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.swept += count
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m.SetRetryConfig(RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	return m
}

func TestNewRequiresRoot(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty work directory")
	}
}

func TestCreateAndCleanup(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	m := newTestManager(t)
	ws, err := m.Create("job-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, p := range []string{ws.InputPath(".mp4"), ws.TransformPath(), ws.OutputPath()} {
		if filepath.Dir(p) != ws.Dir() {
			t.Errorf("%s is outside workspace %s", p, ws.Dir())
		}
		if err := os.WriteFile(p, []byte("data"), 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	if err := ws.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after cleanup: %v", err)
	}

	// Second call is a no-op.
	if err := ws.Cleanup(); err != nil {
		t.Errorf("second Cleanup() error = %v", err)
	}
	if obs.cleanups != 1 {
		t.Errorf("cleanups observed = %d, want 1", obs.cleanups)
	}
}

func TestCreateRejectsDuplicateAndBadIDs(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Create("same"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := m.Create("same"); err == nil {
		t.Error("expected error creating duplicate workspace")
	}

	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := m.Create(id); err == nil {
			t.Errorf("Create(%q) succeeded, want error", id)
		}
	}
}

func TestSanitizeExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{".mp4", ".mp4"},
		{"MOV", ".mov"},
		{"", ".upload"},
		{".tar.gz", ".upload"},
		{".verylongext", ".upload"},
		{"../x", ".upload"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeExt(tt.in); got != tt.want {
				t.Errorf("sanitizeExt(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLockAndSweep(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	m := newTestManager(t)
	for _, id := range []string{"stale-a", "stale-b"} {
		ws, err := m.Create(id)
		if err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
		if err := os.WriteFile(ws.OutputPath(), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer m.Unlock()

	other, err := New(m.Root())
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Lock(); !errors.Is(err, ErrLocked) {
		t.Errorf("second Lock() error = %v, want ErrLocked", err)
	}

	removed, err := m.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Sweep() removed %d, want 2", removed)
	}
	if obs.swept != 2 {
		t.Errorf("swept observed = %d, want 2", obs.swept)
	}

	entries, err := os.ReadDir(m.Root())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != lockFileName {
			t.Errorf("unexpected entry after sweep: %s", e.Name())
		}
	}
}

func TestUsage(t *testing.T) {
	m := newTestManager(t)
	ws, err := m.Create("usage")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ws.InputPath(".mp4"), make([]byte, 1000), 0o600); err != nil {
		t.Fatal(err)
	}

	size, dirs, err := m.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if size != 1000 {
		t.Errorf("size = %d, want 1000", size)
	}
	if dirs != 1 {
		t.Errorf("dirs = %d, want 1", dirs)
	}
}

func TestCheckWritable(t *testing.T) {
	m := newTestManager(t)
	if err := m.CheckWritable(); err != nil {
		t.Errorf("CheckWritable() error = %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"EBUSY", syscall.EBUSY, true},
		{"ESTALE", syscall.ESTALE, true},
		{"ENOTEMPTY", &os.PathError{Op: "unlinkat", Path: "/x", Err: syscall.ENOTEMPTY}, true},
		{"EACCES", syscall.EACCES, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
