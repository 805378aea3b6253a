package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"smoothy/internal/logging"
	"smoothy/internal/metrics"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout is returned when a write or the gap between writes
	// takes longer than configured. Usually a stalled client.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone is returned when the request context is canceled
	// before the stream completes.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled is returned after Close or when the parent context
	// ends for a reason other than a disconnect.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config controls how a result is written to a client.
type Config struct {
	// WriteTimeout bounds a single chunk write. It is enforced with a
	// connection write deadline, so it only applies when the destination
	// supports one (an http.ResponseWriter on a real connection).
	WriteTimeout time.Duration
	// IdleTimeout bounds the time between successful writes.
	IdleTimeout time.Duration
	// ChunkSize splits writes so timeouts and cancellation are checked often.
	ChunkSize int
	// OnProgress is called after every chunk with bytes written so far and
	// the expected total (0 if unknown). May be nil.
	OnProgress func(written, total int64)
}

// DefaultConfig returns the streaming defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// Writer wraps a client connection with per-write and idle timeouts.
// Writes happen on the caller's goroutine; nothing touches dst after Write
// returns.
type Writer struct {
	dst         io.Writer
	flush       func()
	setDeadline func(time.Time) error
	ctx    context.Context
	cancel context.CancelCauseFunc
	config Config
	total  int64

	mu        sync.Mutex
	start     time.Time
	lastWrite time.Time
	written   int64
	closed    bool
}

// NewWriter returns a Writer over dst. total is the expected size, used for
// progress reporting. If dst implements Flush() it is flushed after each
// chunk.
func NewWriter(ctx context.Context, dst io.Writer, total int64, config Config) *Writer {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	writerCtx, cancel := context.WithCancelCause(ctx)
	now := time.Now()

	w := &Writer{
		dst:       dst,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		total:     total,
		start:     now,
		lastWrite: now,
	}
	if f, ok := dst.(interface{ Flush() }); ok {
		w.flush = f.Flush
	}
	switch d := dst.(type) {
	case interface{ SetWriteDeadline(time.Time) error }:
		w.setDeadline = d.SetWriteDeadline
	case http.ResponseWriter:
		w.setDeadline = http.NewResponseController(d).SetWriteDeadline
	}

	if config.IdleTimeout > 0 {
		go w.watchIdle(w.setDeadline)
	}
	return w
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	size := w.config.ChunkSize
	if size <= 0 {
		size = len(p)
	}

	total := 0
	for len(p) > 0 {
		if w.ctx.Err() != nil {
			return total, w.contextError()
		}
		n := min(size, len(p))
		written, err := w.writeChunk(p[:n])
		total += written
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}

func (w *Writer) writeChunk(p []byte) (int, error) {
	if w.setDeadline != nil {
		if err := w.setDeadline(time.Now().Add(w.config.WriteTimeout)); err != nil {
			// http.ErrNotSupported, e.g. a recorder in tests.
			w.setDeadline = nil
		}
	}

	n, err := w.dst.Write(p)
	if n > 0 {
		w.record(n)
	}
	if err != nil {
		if w.ctx.Err() != nil {
			return n, w.contextError()
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			w.cancel(ErrWriteTimeout)
			return n, ErrWriteTimeout
		}
		return n, err
	}
	if w.flush != nil {
		w.flush()
	}
	return n, nil
}

func (w *Writer) record(n int) {
	w.mu.Lock()
	w.lastWrite = time.Now()
	w.written += int64(n)
	written := w.written
	w.mu.Unlock()

	metrics.StreamedBytesTotal.Add(float64(n))
	if w.config.OnProgress != nil {
		w.config.OnProgress(written, w.total)
	}
}

func (w *Writer) watchIdle(setDeadline func(time.Time) error) {
	ticker := time.NewTicker(w.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			idle := time.Since(w.lastWrite)
			w.mu.Unlock()

			if idle > w.config.IdleTimeout {
				logging.Warn("Stream idle for %v, giving up", idle.Round(time.Millisecond))
				w.cancel(ErrWriteTimeout)
				if setDeadline != nil {
					// Unblocks a write stuck on the connection.
					_ = setDeadline(time.Now())
				}
				return
			}
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Writer) contextError() error {
	cause := context.Cause(w.ctx)
	switch {
	case errors.Is(cause, ErrWriteTimeout), errors.Is(cause, ErrStreamCanceled):
		return cause
	case errors.Is(cause, context.Canceled):
		return ErrClientGone
	default:
		return fmt.Errorf("%w: %w", ErrStreamCanceled, cause)
	}
}

// Close stops the idle watcher and clears the write deadline. Later writes
// fail with ErrStreamCanceled.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.cancel(ErrStreamCanceled)
	if w.setDeadline != nil {
		_ = w.setDeadline(time.Time{})
	}
	return nil
}

// Stats returns bytes written and time since the writer was created.
func (w *Writer) Stats() (int64, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, time.Since(w.start)
}
