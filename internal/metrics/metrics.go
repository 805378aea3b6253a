package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smoothy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smoothy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smoothy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smoothy_http_panics_total",
			Help: "Total number of handler panics recovered by middleware",
		},
	)
)

// Job metrics
var (
	JobsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smoothy_jobs_started_total",
			Help: "Total number of processing jobs accepted",
		},
		[]string{"mode"},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smoothy_jobs_finished_total",
			Help: "Total number of processing jobs finished, by outcome",
		},
		[]string{"mode", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smoothy_job_duration_seconds",
			Help:    "Wall time from accepted request to finished response",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 180, 300},
		},
		[]string{"mode"},
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smoothy_jobs_active",
			Help: "Number of jobs currently registered",
		},
	)

	JobSlotWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smoothy_job_slot_wait_seconds",
			Help:    "Time spent waiting for a free processing slot",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60},
		},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smoothy_upload_bytes",
			Help:    "Size of accepted uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(256*1024, 2, 10),
		},
	)

	InputDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smoothy_input_media_duration_seconds",
			Help:    "Probed media duration of uploads",
			Buckets: []float64{1, 2, 5, 10, 15, 20, 25, 30, 60},
		},
	)
)

// External tool metrics
var (
	FFmpegPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smoothy_ffmpeg_pass_duration_seconds",
			Help:    "Duration of individual ffmpeg passes",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		},
		[]string{"pass"},
	)

	FFmpegPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smoothy_ffmpeg_passes_total",
			Help: "Total number of ffmpeg passes by result",
		},
		[]string{"pass", "status"},
	)

	FFprobeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smoothy_ffprobe_duration_seconds",
			Help:    "Duration of ffprobe invocations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ProcessKillsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smoothy_ffmpeg_process_kills_total",
			Help: "Total number of external process groups killed on timeout or cancellation",
		},
	)
)

// Workspace metrics
var (
	WorkspaceCleanupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smoothy_workspace_cleanups_total",
			Help: "Total number of job workspace removals by result",
		},
		[]string{"status"},
	)

	WorkspaceCleanupRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smoothy_workspace_cleanup_retries_total",
			Help: "Total number of retried workspace removals",
		},
	)

	WorkspaceSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smoothy_workspace_swept_total",
			Help: "Total number of stale job directories removed at startup",
		},
	)

	WorkspaceBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smoothy_workspace_bytes",
			Help: "Bytes currently held in the work directory",
		},
	)

	WorkspaceDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smoothy_workspace_directories",
			Help: "Number of job directories currently in the work directory",
		},
	)
)

// Streaming and history metrics
var (
	StreamedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smoothy_streamed_bytes_total",
			Help: "Total bytes of processed video streamed to clients",
		},
	)

	HistoryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smoothy_history_writes_total",
			Help: "Total number of job history inserts by result",
		},
		[]string{"status"},
	)
)

// AppInfo is set once at startup so dashboards can show the running build.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "smoothy_app_info",
		Help: "Build information, value is always 1",
	},
	[]string{"version", "commit", "go_version", "mode"},
)
