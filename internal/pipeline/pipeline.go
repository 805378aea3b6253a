package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smoothy/internal/ffmpeg"
	"smoothy/internal/jobs"
	"smoothy/internal/logging"
	"smoothy/internal/metrics"
)

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
}

// Runner executes one ffmpeg pass.
type Runner interface {
	Run(ctx context.Context, pass string, args []string, onProgress func(ffmpeg.Progress)) error
}

// Reporter receives stage changes and per-stage progress. *jobs.Job
// satisfies it.
type Reporter interface {
	SetStage(stage jobs.Stage)
	Report(fraction float64)
}

// Files are the paths a job reads and writes.
type Files struct {
	Input     string
	Transform string
	Output    string
}

// Config controls validation limits and pass timeouts.
type Config struct {
	Mode        ffmpeg.Mode
	MaxDuration time.Duration
	PassTimeout time.Duration
}

// Default limits.
const (
	DefaultMaxDuration = 30 * time.Second
	DefaultPassTimeout = 3 * time.Minute
)

// Pipeline runs validation and the ffmpeg passes for one job at a time.
// It holds no per-job state and is safe for concurrent use.
type Pipeline struct {
	prober Prober
	runner Runner
	config Config
}

// New returns a Pipeline. Zero config fields take defaults.
func New(prober Prober, runner Runner, config Config) *Pipeline {
	if config.Mode == "" {
		config.Mode = ffmpeg.ModeStabilize
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = DefaultMaxDuration
	}
	if config.PassTimeout <= 0 {
		config.PassTimeout = DefaultPassTimeout
	}
	return &Pipeline{prober: prober, runner: runner, config: config}
}

// Mode returns the configured processing mode.
func (p *Pipeline) Mode() ffmpeg.Mode {
	return p.config.Mode
}

// MaxDuration returns the longest accepted upload.
func (p *Pipeline) MaxDuration() time.Duration {
	return p.config.MaxDuration
}

// Validate probes the input and enforces the duration limit.
func (p *Pipeline) Validate(ctx context.Context, input string, r Reporter) (*ffmpeg.VideoInfo, error) {
	r.SetStage(jobs.StageProbing)

	info, err := p.prober.Probe(ctx, input)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, ffmpeg.ErrNotMedia) {
			return nil, &Error{Stage: "probe", Kind: KindInvalidInput, Err: fmt.Errorf("%w: %v", ErrInvalidMedia, err)}
		}
		return nil, wrap("probe", err)
	}
	metrics.InputDurationSeconds.Observe(info.Duration)

	if !info.HasVideo {
		return nil, &Error{Stage: "probe", Kind: KindInvalidInput, Err: ErrNoVideoStream}
	}
	if info.Duration > p.config.MaxDuration.Seconds() {
		return nil, &Error{
			Stage: "probe",
			Kind:  KindTooLong,
			Err:   fmt.Errorf("%w: %.2fs exceeds %v", ErrDurationExceeded, info.Duration, p.config.MaxDuration),
		}
	}

	r.Report(1)
	return info, nil
}

// Process runs the passes for the configured mode and leaves the result at
// files.Output. Each pass gets its own timeout derived from ctx.
func (p *Pipeline) Process(ctx context.Context, files Files, info *ffmpeg.VideoInfo, r Reporter) error {
	duration := 0.0
	if info != nil {
		duration = info.Duration
	}

	switch p.config.Mode {
	case ffmpeg.ModeStabilize:
		if err := p.pass(ctx, ffmpeg.PassDetect, jobs.StageDetecting,
			ffmpeg.DetectArgs(files.Input, files.Transform), duration, r); err != nil {
			return err
		}
		return p.pass(ctx, ffmpeg.PassTransform, jobs.StageTransforming,
			ffmpeg.TransformArgs(files.Input, files.Transform, files.Output, duration), duration, r)
	case ffmpeg.ModeBlend:
		return p.pass(ctx, ffmpeg.PassEncode, jobs.StageEncoding,
			ffmpeg.BlendArgs(files.Input, files.Output, duration), duration, r)
	case ffmpeg.ModeConvert:
		return p.pass(ctx, ffmpeg.PassEncode, jobs.StageEncoding,
			ffmpeg.ConvertArgs(files.Input, files.Output), duration, r)
	default:
		return &Error{Stage: "process", Kind: KindInternal, Err: fmt.Errorf("unknown mode %q", p.config.Mode)}
	}
}

// Run validates then processes.
func (p *Pipeline) Run(ctx context.Context, files Files, r Reporter) (*ffmpeg.VideoInfo, error) {
	info, err := p.Validate(ctx, files.Input, r)
	if err != nil {
		return nil, err
	}
	if err := p.Process(ctx, files, info, r); err != nil {
		return info, err
	}
	return info, nil
}

func (p *Pipeline) pass(ctx context.Context, name string, stage jobs.Stage, args []string, duration float64, r Reporter) error {
	if ctx.Err() != nil {
		return wrap(name, context.Cause(ctx))
	}

	r.SetStage(stage)

	passCtx, cancel := context.WithTimeoutCause(ctx, p.config.PassTimeout, ErrPassTimeout)
	defer cancel()

	start := time.Now()
	err := p.runner.Run(passCtx, name, args, func(pr ffmpeg.Progress) {
		r.Report(pr.Fraction(duration))
	})
	if err != nil {
		pe := wrap(name, err)
		logging.Warn("ffmpeg %s pass failed after %v: %v", name, time.Since(start).Round(time.Millisecond), err)
		if pe.Stderr != "" {
			logging.Debug("ffmpeg %s stderr:\n%s", name, pe.Stderr)
		}
		return pe
	}

	r.Report(1)
	return nil
}
