package pipeline

import (
	"context"
	"errors"
	"fmt"

	"smoothy/internal/ffmpeg"
)

var (
	// ErrDurationExceeded is returned when the upload is longer than allowed.
	ErrDurationExceeded = errors.New("video too long")
	// ErrNoVideoStream is returned when the upload has no video track.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrInvalidMedia is returned when the upload cannot be probed.
	ErrInvalidMedia = errors.New("invalid video file")
	// ErrPassTimeout is the cause attached to a single pass deadline.
	ErrPassTimeout = errors.New("processing pass timed out")
	// ErrRequestTimeout is the cause attached to the overall job deadline.
	ErrRequestTimeout = errors.New("processing timeout")
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindTooLong
	KindPassTimeout
	KindRequestTimeout
	KindCanceled
	KindTool
)

// Outcome is the metrics and history label for k.
func (k Kind) Outcome() string {
	switch k {
	case KindInvalidInput:
		return "bad_request"
	case KindTooLong:
		return "too_long"
	case KindPassTimeout:
		return "pass_timeout"
	case KindRequestTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindTool:
		return "tool_error"
	default:
		return "internal_error"
	}
}

// Error is a stage-aware pipeline failure.
type Error struct {
	Stage  string
	Kind   Kind
	Err    error
	Stderr string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Stage + ": failed"
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return classify(err)
}

// wrap turns err into an *Error for stage.
func wrap(stage string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	e := &Error{Stage: stage, Kind: classify(err), Err: err}
	var exitErr *ffmpeg.ExitError
	if errors.As(err, &exitErr) {
		e.Stderr = exitErr.Stderr
	}
	return e
}

// classify checks the request timer before the pass timer: a pass context
// derived from an expired request context reports the request cause.
func classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrRequestTimeout):
		return KindRequestTimeout
	case errors.Is(err, ErrPassTimeout):
		return KindPassTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ffmpeg.ErrShuttingDown):
		return KindCanceled
	case errors.Is(err, ErrDurationExceeded):
		return KindTooLong
	case errors.Is(err, ErrNoVideoStream), errors.Is(err, ErrInvalidMedia), errors.Is(err, ffmpeg.ErrNotMedia):
		return KindInvalidInput
	default:
		return KindTool
	}
}
