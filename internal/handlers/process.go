package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"smoothy/internal/history"
	"smoothy/internal/jobs"
	"smoothy/internal/logging"
	"smoothy/internal/metrics"
	"smoothy/internal/pipeline"
	"smoothy/internal/scratch"
	"smoothy/internal/streaming"
)

const (
	videoField = "video"

	// multipartOverhead is the body allowance on top of the file limit for
	// boundaries, part headers and small form fields.
	multipartOverhead = 1 << 20

	// statusClientClosedRequest is recorded when the client went away. It is
	// never written to the wire.
	statusClientClosedRequest = 499

	msgNoFile         = "No video file uploaded"
	msgRequestTimeout = "Processing timeout - video too long or complex"
)

var (
	errNoFile        = errors.New("no video file uploaded")
	errDuplicateFile = errors.New("more than one video file uploaded")
	errTooLarge      = errors.New("upload exceeds size limit")
)

// outcome is what the deferred bookkeeping records about a finished job.
type outcome struct {
	status        int
	label         string
	err           error
	inputBytes    int64
	outputBytes   int64
	mediaDuration float64
}

// Process accepts one video upload, runs it through the pipeline and streams
// the WebM result back. The job and its workspace are removed on every exit
// path before the handler returns.
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	h.begin()
	defer h.end()

	rawID := r.Header.Get("X-Job-ID")
	if rawID == "" {
		rawID = r.URL.Query().Get("jobId")
	}
	mode := string(h.pipeline.Mode())

	job, err := h.registry.Create(rawID, mode)
	switch {
	case errors.Is(err, jobs.ErrInvalidID):
		http.Error(w, "Invalid job ID - must be a UUID", http.StatusBadRequest)
		return
	case errors.Is(err, jobs.ErrJobExists):
		http.Error(w, "Job ID already in use", http.StatusConflict)
		return
	case err != nil:
		logging.Error("Failed to register job: %v", err)
		http.Error(w, "Processing failed: could not register job", http.StatusInternalServerError)
		return
	}
	defer h.registry.Remove(job.ID)

	w.Header().Set("X-Job-ID", job.ID)
	metrics.JobsStartedTotal.WithLabelValues(mode).Inc()
	logging.Info("job=%s accepted (mode=%s)", job.ID, mode)

	out := &outcome{status: http.StatusOK, label: "success"}
	defer h.finish(r.Context(), job, out)

	ws, err := h.scratch.Create(job.ID)
	if err != nil {
		h.fail(w, job, out, http.StatusInternalServerError, "internal_error",
			"Processing failed: could not create workspace", err)
		return
	}
	defer func() {
		// Cleanup logs and counts its own failures.
		_ = ws.Cleanup()
	}()

	input, size, err := h.receiveUpload(w, r, ws, job)
	if err != nil {
		h.uploadFailed(w, r, job, out, err)
		return
	}
	out.inputBytes = size
	metrics.UploadBytes.Observe(float64(size))
	logging.Info("job=%s stored %s upload", job.ID, humanize.IBytes(uint64(size)))

	// The overall timer starts once the upload is on disk and covers the
	// wait for a slot as well as every pass.
	ctx, cancel := context.WithTimeoutCause(r.Context(), h.config.RequestTimeout, pipeline.ErrRequestTimeout)
	defer cancel()

	job.SetStage(jobs.StageQueued)
	release, err := h.slots.Acquire(ctx)
	if err != nil {
		h.processingFailed(w, job, out, err)
		return
	}
	info, err := h.pipeline.Run(ctx, pipeline.Files{
		Input:     input,
		Transform: ws.TransformPath(),
		Output:    ws.OutputPath(),
	}, job)
	release()
	if info != nil {
		out.mediaDuration = info.Duration
	}
	if err != nil {
		h.processingFailed(w, job, out, err)
		return
	}

	h.sendResult(w, r, ws, job, out)
}

func (h *Handlers) sendResult(w http.ResponseWriter, r *http.Request, ws *scratch.Workspace, job *jobs.Job, out *outcome) {
	job.SetStage(jobs.StageStreaming)

	var streamed atomic.Int64
	config := h.config.Streaming
	config.OnProgress = func(written, total int64) {
		streamed.Store(written)
		if total > 0 {
			job.Report(float64(written) / float64(total))
		}
	}

	headersSent, err := streaming.SendFile(r.Context(), w, streaming.Attachment{
		Path:        ws.OutputPath(),
		Filename:    "output_" + job.ID + ".webm",
		ContentType: "video/webm",
	}, config)
	out.outputBytes = streamed.Load()

	if err != nil {
		if !headersSent {
			h.fail(w, job, out, http.StatusInternalServerError, "internal_error",
				"Processing failed: could not read result", err)
			return
		}
		out.err = err
		out.label = "internal_error"
		if errors.Is(err, streaming.ErrClientGone) {
			out.label = "canceled"
			out.status = statusClientClosedRequest
		}
		logging.Warn("job=%s result stream interrupted: %v", job.ID, err)
		return
	}

	job.Complete()
	logging.Info("job=%s completed in %v (%s)", job.ID,
		time.Since(job.StartedAt).Round(time.Millisecond), humanize.IBytes(uint64(out.outputBytes)))
}

// receiveUpload streams the video part into the workspace and returns its
// path and size. Other form parts are skipped.
func (h *Handlers) receiveUpload(w http.ResponseWriter, r *http.Request, ws *scratch.Workspace, job *jobs.Job) (string, int64, error) {
	job.SetStage(jobs.StageUploading)

	if h.config.UploadTimeout > 0 {
		rc := http.NewResponseController(w)
		if err := rc.SetReadDeadline(time.Now().Add(h.config.UploadTimeout)); err == nil {
			defer func() {
				_ = rc.SetReadDeadline(time.Time{})
			}()
		}
	}

	limit := h.config.MaxUploadBytes
	if r.ContentLength > limit+multipartOverhead {
		return "", 0, errTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", errNoFile, err)
	}

	var path string
	var size int64
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, uploadError(err)
		}

		if part.FormName() != videoField {
			// NextPart discards whatever is left of this part.
			_ = part.Close()
			continue
		}
		if path != "" {
			_ = part.Close()
			return "", 0, errDuplicateFile
		}

		path = ws.InputPath(filepath.Ext(part.FileName()))
		size, err = h.saveUpload(part, path, r.ContentLength, job)
		_ = part.Close()
		if err != nil {
			return "", 0, err
		}
	}

	if path == "" || size == 0 {
		return "", 0, errNoFile
	}
	job.Report(1)
	return path, size, nil
}

func (h *Handlers) saveUpload(src io.Reader, path string, total int64, job *jobs.Job) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}

	pr := &progressReader{
		r:      io.LimitReader(src, h.config.MaxUploadBytes+1),
		total:  total,
		report: job.Report,
	}
	n, copyErr := io.Copy(f, pr)
	closeErr := f.Close()

	if copyErr != nil {
		return n, uploadError(copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("write upload: %w", closeErr)
	}
	if n > h.config.MaxUploadBytes {
		return n, errTooLarge
	}
	return n, nil
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: %v", errTooLarge, err)
	}
	return fmt.Errorf("read upload: %w", err)
}

// progressReader reports bytes read against the request Content-Length.
type progressReader struct {
	r      io.Reader
	read   int64
	total  int64
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && n > 0 {
		p.report(float64(p.read) / float64(p.total))
	}
	return n, err
}

func (h *Handlers) uploadFailed(w http.ResponseWriter, r *http.Request, job *jobs.Job, out *outcome, err error) {
	switch {
	case errors.Is(err, errTooLarge):
		h.fail(w, job, out, http.StatusRequestEntityTooLarge, "bad_request",
			fmt.Sprintf("Video file too large - maximum %s allowed", humanize.IBytes(uint64(h.config.MaxUploadBytes))), err)
	case errors.Is(err, errDuplicateFile):
		h.fail(w, job, out, http.StatusBadRequest, "bad_request", "Only one video file may be uploaded", err)
	case r.Context().Err() != nil:
		h.canceled(job, out, err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		h.fail(w, job, out, http.StatusRequestTimeout, "timeout", "Upload timeout", err)
	case errors.Is(err, errNoFile):
		h.fail(w, job, out, http.StatusBadRequest, "bad_request", msgNoFile, err)
	default:
		h.fail(w, job, out, http.StatusBadRequest, "bad_request", "Upload failed", err)
	}
}

func (h *Handlers) processingFailed(w http.ResponseWriter, job *jobs.Job, out *outcome, err error) {
	var pe *pipeline.Error
	if errors.As(err, &pe) && pe.Stderr != "" {
		logging.Debug("job=%s ffmpeg stderr:\n%s", job.ID, pe.Stderr)
	}

	kind := pipeline.KindOf(err)
	label := kind.Outcome()

	switch kind {
	case pipeline.KindInvalidInput:
		msg := "Invalid video file"
		if errors.Is(err, pipeline.ErrNoVideoStream) {
			msg = "No video stream found"
		}
		h.fail(w, job, out, http.StatusBadRequest, label, msg, err)
	case pipeline.KindTooLong:
		limit := strconv.FormatFloat(h.pipeline.MaxDuration().Seconds(), 'f', -1, 64)
		h.fail(w, job, out, http.StatusBadRequest, label,
			"Video too long - maximum "+limit+" seconds allowed", err)
	case pipeline.KindRequestTimeout:
		h.fail(w, job, out, http.StatusRequestTimeout, label, msgRequestTimeout, err)
	case pipeline.KindPassTimeout:
		h.fail(w, job, out, http.StatusInternalServerError, label,
			"Processing failed: "+pipeline.ErrPassTimeout.Error(), err)
	case pipeline.KindCanceled:
		h.canceled(job, out, err)
	case pipeline.KindTool:
		msg := err.Error()
		if pe != nil && pe.Err != nil {
			msg = pe.Err.Error()
		}
		h.fail(w, job, out, http.StatusInternalServerError, label, "Processing failed: "+msg, err)
	default:
		h.fail(w, job, out, http.StatusInternalServerError, label, "Processing failed: internal error", err)
	}
}

func (h *Handlers) fail(w http.ResponseWriter, job *jobs.Job, out *outcome, status int, label, message string, err error) {
	out.status = status
	out.label = label
	out.err = err
	if status >= http.StatusInternalServerError {
		logging.Error("job=%s failed (%d): %v", job.ID, status, err)
	} else {
		logging.Warn("job=%s rejected (%d): %v", job.ID, status, err)
	}
	http.Error(w, message, status)
}

// canceled records a job whose client went away. Nothing is written.
func (h *Handlers) canceled(job *jobs.Job, out *outcome, err error) {
	out.status = statusClientClosedRequest
	out.label = "canceled"
	out.err = err
	logging.Info("job=%s canceled: %v", job.ID, err)
}

func (h *Handlers) finish(ctx context.Context, job *jobs.Job, out *outcome) {
	finished := time.Now()
	elapsed := finished.Sub(job.StartedAt)

	metrics.JobsFinishedTotal.WithLabelValues(job.Mode, out.label).Inc()
	metrics.JobDuration.WithLabelValues(job.Mode).Observe(elapsed.Seconds())

	rec := history.Record{
		JobID:          job.ID,
		Mode:           job.Mode,
		Outcome:        out.label,
		StatusCode:     out.status,
		InputBytes:     out.inputBytes,
		OutputBytes:    out.outputBytes,
		MediaDuration:  out.mediaDuration,
		ElapsedSeconds: elapsed.Seconds(),
		CreatedAt:      job.StartedAt,
		FinishedAt:     finished,
	}
	if out.err != nil {
		rec.Error = out.err.Error()
	}
	if err := h.history.Add(context.WithoutCancel(ctx), rec); err != nil {
		logging.Warn("job=%s failed to record history: %v", job.ID, err)
	}
}
