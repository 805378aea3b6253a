package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"smoothy/internal/ffmpeg"
	"smoothy/internal/handlers"
	"smoothy/internal/history"
	"smoothy/internal/jobs"
	"smoothy/internal/logging"
	"smoothy/internal/metrics"
	"smoothy/internal/middleware"
	"smoothy/internal/pipeline"
	"smoothy/internal/scratch"
	"smoothy/internal/startup"
	"smoothy/internal/workers"
)

const (
	shutdownTimeout   = 30 * time.Second
	jobDrainTimeout   = 10 * time.Second
	collectorInterval = 30 * time.Second
)

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configFlag)
		},
	}
}

func runServe(configPath string) error {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion, string(config.Mode)).Set(1)
	scratch.SetObserver(metrics.NewScratchObserver())

	// Take the work directory and clear anything a previous run left behind
	wsStart := time.Now()
	ws, err := scratch.New(config.WorkDir)
	if err != nil {
		return err
	}
	if err := ws.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := ws.Unlock(); err != nil {
			logging.Warn("Failed to release work directory lock: %v", err)
		}
	}()
	swept, err := ws.Sweep()
	if err != nil {
		logging.Warn("Startup sweep incomplete: %v", err)
	}
	startup.LogWorkspaceInit(ws.Root(), swept, time.Since(wsStart))

	// Initialize history ledger
	var store *history.Store
	if config.HistoryEnabled {
		historyStart := time.Now()
		store, err = history.Open(context.Background(), config.HistoryPath())
		if err != nil {
			logging.Warn("History disabled: %v", err)
			store = nil
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					logging.Warn("Failed to close history: %v", err)
				}
			}()
			startup.LogHistoryInit(store.Path(), time.Since(historyStart))
		}
	}

	startup.LogToolsInit(config.FFmpegPath, config.FFprobePath)
	startup.LogJobSlots(config.MaxConcurrentJobs)

	// Initialize handlers
	runner := ffmpeg.NewRunner(config.FFmpegPath)
	pipe := pipeline.New(
		ffmpeg.NewProber(config.FFprobePath),
		runner,
		pipeline.Config{
			Mode:        config.Mode,
			MaxDuration: config.MaxDuration(),
			PassTimeout: config.PassTimeout,
		},
	)
	h := handlers.New(jobs.NewRegistry(), pipe, ws, workers.NewSlots(config.MaxConcurrentJobs), store, handlers.Config{
		MaxUploadBytes: config.MaxUploadBytes,
		UploadTimeout:  config.UploadTimeout,
		RequestTimeout: config.RequestTimeout,
		Tools:          []string{config.FFmpegPath, config.FFprobePath},
	})

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)
	handler := buildHandler(router, config)

	collector := metrics.NewCollector(ws, collectorInterval)
	collector.Start()

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Uploads set their own read deadline, so the server only bounds headers.
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		Mode:            string(config.Mode),
		StartupDuration: time.Since(startTime),
	})
	logging.Info("SMOOTHY server running on port %s", config.Port)

	select {
	case err := <-errChan:
		collector.Stop()
		stopJobs(runner, h, jobDrainTimeout)
		if metricsSrv != nil {
			_ = metricsSrv.Close()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		handleShutdown(sig, srv, metricsSrv, collector, runner, h)
		return nil
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Upload and progress
	r.HandleFunc("/", h.Root).Methods("GET")
	r.HandleFunc("/process", h.Process).Methods("POST")
	r.HandleFunc("/progress/{id}", h.GetProgress).Methods("GET")
	r.HandleFunc("/jobs", h.ListJobs).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/history", h.GetHistory).Methods("GET")

	return r
}

// buildHandler wraps the router in access logging, CORS and panic recovery.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.CORS(config.CORSOrigins)(router)
	handler = middleware.Logger(loggingConfig)(handler)
	return middleware.Recovery(handler)
}

func newMetricsServer(port string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	m.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              ":" + port,
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// jobKiller stops running ffmpeg passes. *ffmpeg.Runner implements it.
type jobKiller interface {
	KillAll() int
}

// jobWaiter waits for in-flight uploads. *handlers.Handlers implements it.
type jobWaiter interface {
	Wait(ctx context.Context) error
}

// stopJobs kills every ffmpeg process group still running, then waits up to
// timeout for the handlers to remove workspaces and record history.
func stopJobs(killer jobKiller, waiter jobWaiter, timeout time.Duration) {
	startup.LogShutdownStep("Stopping running jobs")
	if n := killer.KillAll(); n > 0 {
		logging.Warn("  Killed %d running ffmpeg pass(es)", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := waiter.Wait(ctx); err != nil {
		logging.Warn("  Jobs still running after %v: %v", timeout, err)
		return
	}
	startup.LogShutdownStepComplete("Running jobs stopped")
}

func handleShutdown(sig os.Signal, srv, metricsSrv *http.Server, collector *metrics.Collector, killer jobKiller, waiter jobWaiter) {
	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		// stopJobs below kills whatever is still running.
		logging.Warn("Server shutdown error: %v; closing active connections", err)
		if err := srv.Close(); err != nil {
			logging.Warn("Server close error: %v", err)
		}
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	stopJobs(killer, waiter, jobDrainTimeout)

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
