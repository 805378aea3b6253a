package scratch

import (
	"errors"
	"os"
	"syscall"
	"time"

	"smoothy/internal/logging"
)

// RetryConfig configures retry behavior for workspace removal.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the backoff used for job cleanup.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isTransient reports whether a removal error is worth retrying. A killed
// ffmpeg may still hold its output open for a moment, and network mounts
// return ESTALE.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EBUSY || errno == syscall.ESTALE || errno == syscall.ENOTEMPTY
	}
	return false
}

// removeAllWithRetry removes path and everything under it.
func removeAllWithRetry(path string, config RetryConfig) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := os.RemoveAll(path)
		if err == nil {
			if attempt > 0 {
				logging.Debug("Removed %s on retry %d", path, attempt)
			}
			return nil
		}

		lastErr = err
		if !isTransient(err) {
			return err
		}

		if attempt < config.MaxRetries {
			if defaultObserver != nil {
				defaultObserver.ObserveCleanupRetry()
			}
			logging.Debug("Removal of %s failed (%v), retrying in %v (attempt %d/%d)",
				path, err, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	return lastErr
}
