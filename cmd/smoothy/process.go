package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"smoothy/internal/ffmpeg"
	"smoothy/internal/jobs"
	"smoothy/internal/pipeline"
	"smoothy/internal/scratch"
	"smoothy/internal/startup"
)

func newProcessCommand(configFlag *string) *cobra.Command {
	var outputFlag string
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "process <input>",
		Short: "Smooth a local video file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), *configFlag, args[0], outputFlag, modeFlag, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output WebM path (default <input>_smoothed.webm)")
	cmd.Flags().StringVar(&modeFlag, "mode", "", "Processing mode: stabilize, blend or convert")
	return cmd
}

func runProcess(ctx context.Context, configPath, input, output, modeName string, stderr io.Writer) error {
	config, err := startup.Load(configPath)
	if err != nil {
		return err
	}
	if modeName != "" {
		mode, err := ffmpeg.ParseMode(modeName)
		if err != nil {
			return err
		}
		config.Mode = mode
	}

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %s is a directory", input)
	}
	if output == "" {
		output = defaultOutputPath(input)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeoutCause(ctx, config.RequestTimeout, pipeline.ErrRequestTimeout)
	defer cancel()

	ws, err := scratch.New(config.WorkDir)
	if err != nil {
		return err
	}
	workspace, err := ws.Create(uuid.NewString())
	if err != nil {
		return err
	}
	defer func() {
		_ = workspace.Cleanup()
	}()

	pipe := pipeline.New(
		ffmpeg.NewProber(config.FFprobePath),
		ffmpeg.NewRunner(config.FFmpegPath),
		pipeline.Config{
			Mode:        config.Mode,
			MaxDuration: config.MaxDuration(),
			PassTimeout: config.PassTimeout,
		},
	)

	reporter := newCLIReporter(config.Mode, stderr)
	start := time.Now()
	_, err = pipe.Run(ctx, pipeline.Files{
		Input:     input,
		Transform: workspace.TransformPath(),
		Output:    workspace.OutputPath(),
	}, reporter)
	reporter.finish(err == nil)
	if err != nil {
		return describeFailure(err, pipe)
	}

	written, err := copyFile(workspace.OutputPath(), output)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Wrote %s (%s) in %v\n", output, humanize.IBytes(uint64(written)), time.Since(start).Round(time.Millisecond))
	return nil
}

func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_smoothed.webm"
}

// describeFailure turns a pipeline error into the message the server would
// have sent.
func describeFailure(err error, pipe *pipeline.Pipeline) error {
	switch pipeline.KindOf(err) {
	case pipeline.KindTooLong:
		return fmt.Errorf("video too long - maximum %v allowed: %w", pipe.MaxDuration(), err)
	case pipeline.KindRequestTimeout:
		return fmt.Errorf("processing timeout - video too long or complex: %w", err)
	case pipeline.KindCanceled:
		return context.Canceled
	default:
		return fmt.Errorf("processing failed: %w", err)
	}
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open result: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, errors.Join(fmt.Errorf("write output: %w", err), os.Remove(dst))
	}
	return n, nil
}

// cliReporter drives a progress bar on terminals and prints stage changes
// otherwise.
type cliReporter struct {
	job *jobs.Job
	bar *progressbar.ProgressBar
	out io.Writer
}

func newCLIReporter(mode ffmpeg.Mode, out io.Writer) *cliReporter {
	r := &cliReporter{
		job: &jobs.Job{ID: "local", Mode: string(mode), StartedAt: time.Now()},
		out: out,
	}
	if isTerminal(out) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("starting"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(false),
		)
	}
	return r
}

func (r *cliReporter) SetStage(stage jobs.Stage) {
	r.job.SetStage(stage)
	if r.bar == nil {
		fmt.Fprintf(r.out, "%s...\n", stage)
		return
	}
	r.bar.Describe(string(stage))
	_ = r.bar.Set(r.job.Progress())
}

func (r *cliReporter) Report(fraction float64) {
	r.job.Report(fraction)
	if r.bar != nil {
		_ = r.bar.Set(r.job.Progress())
	}
}

func (r *cliReporter) finish(ok bool) {
	if r.bar == nil {
		return
	}
	if ok {
		_ = r.bar.Finish()
	} else {
		_ = r.bar.Exit()
	}
	fmt.Fprintln(r.out)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
