package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"smoothy/internal/logging"
)

const lockFileName = ".smoothy.lock"

// ErrLocked is returned by Lock when another process owns the work directory.
var ErrLocked = errors.New("work directory is locked by another smoothy instance")

// Manager owns the work directory and hands out per-job workspaces.
type Manager struct {
	root  string
	lock  *flock.Flock
	retry RetryConfig
}

// New creates the work directory if needed and returns a Manager for it.
func New(root string) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("work directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve work directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	return &Manager{
		root:  abs,
		lock:  flock.New(filepath.Join(abs, lockFileName)),
		retry: DefaultRetryConfig(),
	}, nil
}

// Root returns the absolute work directory.
func (m *Manager) Root() string {
	return m.root
}

// SetRetryConfig overrides the cleanup backoff.
func (m *Manager) SetRetryConfig(config RetryConfig) {
	m.retry = config
}

// Lock takes the work directory lock without blocking.
func (m *Manager) Lock() error {
	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire work directory lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Unlock releases the work directory lock.
func (m *Manager) Unlock() error {
	return m.lock.Unlock()
}

// CheckWritable reports whether new workspaces can be created.
func (m *Manager) CheckWritable() error {
	return checkAccess(m.root)
}

// Sweep removes job directories left behind by a previous process. Call it
// only while holding the lock.
func (m *Manager) Sweep() (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("read work directory: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.Name() == lockFileName {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		if err := removeAllWithRetry(path, m.retry); err != nil {
			logging.Warn("Failed to sweep stale workspace %s: %v", path, err)
			errs = append(errs, err)
			continue
		}
		logging.Debug("Swept stale workspace %s", path)
		removed++
	}

	if defaultObserver != nil && removed > 0 {
		defaultObserver.ObserveSwept(removed)
	}
	return removed, errors.Join(errs...)
}

// Usage returns the bytes and job directories currently in the work directory.
func (m *Manager) Usage() (int64, int, error) {
	var size int64
	dirs := 0
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Workspaces disappear while we walk.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if path == m.root {
			return nil
		}
		if d.IsDir() {
			if filepath.Dir(path) == m.root {
				dirs++
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		return nil
	})
	return size, dirs, err
}

// Create makes a fresh workspace for jobID. It fails if one already exists,
// so two jobs can never share files.
func (m *Manager) Create(jobID string) (*Workspace, error) {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return nil, fmt.Errorf("invalid job id %q", jobID)
	}
	dir := filepath.Join(m.root, jobID)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir, retry: m.retry}, nil
}

// Workspace is the directory owned by a single job.
type Workspace struct {
	dir   string
	retry RetryConfig

	once sync.Once
	err  error
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// InputPath returns where the upload is stored. ext is taken from the client
// file name, so anything unusual is replaced.
func (w *Workspace) InputPath(ext string) string {
	return filepath.Join(w.dir, "input"+sanitizeExt(ext))
}

// TransformPath returns the vidstab transform descriptor location.
func (w *Workspace) TransformPath() string {
	return filepath.Join(w.dir, "transform.trf")
}

// OutputPath returns the encoded result location.
func (w *Workspace) OutputPath() string {
	return filepath.Join(w.dir, "output.webm")
}

// Cleanup removes the workspace. It is safe to call more than once and from
// several exit paths; only the first call does work.
func (w *Workspace) Cleanup() error {
	w.once.Do(func() {
		w.err = removeAllWithRetry(w.dir, w.retry)
		if defaultObserver != nil {
			defaultObserver.ObserveCleanup(w.err)
		}
		if w.err != nil {
			logging.Warn("Failed to clean up workspace %s: %v", w.dir, w.err)
		}
	})
	return w.err
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || len(ext) > 8 {
		return ".upload"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".upload"
		}
	}
	return "." + ext
}
