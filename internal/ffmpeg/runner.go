package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"smoothy/internal/logging"
	"smoothy/internal/metrics"
)

const defaultWaitDelay = 5 * time.Second

// ErrShuttingDown is returned for passes stopped or refused by KillAll.
var ErrShuttingDown = errors.New("server shutting down")

// globalArgs are prepended to every pass.
var globalArgs = []string{
	"-hide_banner",
	"-nostdin",
	"-nostats",
	"-progress", "pipe:1",
	"-y",
}

// ExitError is returned when ffmpeg exits unsuccessfully on its own.
type ExitError struct {
	Pass     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffmpeg %s pass exited with code %d", e.Pass, e.ExitCode)
	if last := lastLine(e.Stderr); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Runner executes ffmpeg passes.
type Runner struct {
	binary      string
	waitDelay   time.Duration
	stderrLines int

	mu     sync.Mutex
	active map[int]*exec.Cmd
	closed bool
}

// NewRunner returns a Runner for the given ffmpeg executable.
func NewRunner(binary string) *Runner {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Runner{
		binary:      binary,
		waitDelay:   defaultWaitDelay,
		stderrLines: defaultStderrLines,
		active:      make(map[int]*exec.Cmd),
	}
}

// SetWaitDelay bounds how long Run waits for pipes to close after the
// process group has been killed.
func (r *Runner) SetWaitDelay(d time.Duration) {
	if d > 0 {
		r.waitDelay = d
	}
}

// Run executes one pass and blocks until it exits. onProgress is called for
// every progress block ffmpeg reports. When ctx ends first the process group
// is killed and the returned error wraps context.Cause(ctx). Passes stopped
// by KillAll return ErrShuttingDown.
func (r *Runner) Run(ctx context.Context, pass string, args []string, onProgress func(Progress)) error {
	if r.isClosed() {
		return fmt.Errorf("ffmpeg %s pass: %w", pass, ErrShuttingDown)
	}

	start := time.Now()
	status := "error"
	defer func() {
		metrics.FFmpegPassDuration.WithLabelValues(pass).Observe(time.Since(start).Seconds())
		metrics.FFmpegPassesTotal.WithLabelValues(pass, status).Inc()
	}()

	full := append(append([]string(nil), globalArgs...), args...)
	cmd := exec.CommandContext(ctx, r.binary, full...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = r.waitDelay

	stderr := newTailBuffer(r.stderrLines)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg %s pipe: %w", pass, err)
	}

	logging.Debug("Running ffmpeg %s pass: %s %s", pass, r.binary, strings.Join(full, " "))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg %s pass: %w", pass, err)
	}
	r.track(cmd)
	defer r.untrack(cmd)

	if err := parseProgress(stdout, onProgress); err != nil {
		logging.Debug("ffmpeg %s progress stream ended: %v", pass, err)
	}

	err = cmd.Wait()
	if err != nil && ctx.Err() == nil && r.isClosed() {
		status = "killed"
		return fmt.Errorf("ffmpeg %s pass: %w", pass, ErrShuttingDown)
	}
	if ctx.Err() != nil {
		status = "timeout"
		return fmt.Errorf("ffmpeg %s pass: %w", pass, context.Cause(ctx))
	}
	if err != nil {
		exitErr := &ExitError{Pass: pass, ExitCode: -1, Stderr: stderr.String(), Err: err}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exitErr.ExitCode = ee.ExitCode()
		}
		return exitErr
	}

	status = "success"
	logging.Debug("ffmpeg %s pass finished in %v", pass, time.Since(start))
	return nil
}

// Active returns the number of passes currently running.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// KillAll kills the process group of every running pass and makes later
// passes fail with ErrShuttingDown. It returns the number of passes killed.
func (r *Runner) KillAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for pid, cmd := range r.active {
		logging.Info("Killing ffmpeg process group %d", pid)
		if err := cmd.Cancel(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logging.Warn("failed to kill ffmpeg process group %d: %v", pid, err)
		}
	}
	return len(r.active)
}

func (r *Runner) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// track records a started pass. A pass that starts while KillAll runs is
// killed straight away.
func (r *Runner) track(cmd *exec.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[cmd.Process.Pid] = cmd
	if r.closed {
		_ = cmd.Cancel()
	}
}

func (r *Runner) untrack(cmd *exec.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, cmd.Process.Pid)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
