package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"smoothy/internal/logging"
	"smoothy/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LoadConfig loads configuration for the server, logging each value and
// preparing the work and data directories.
func LoadConfig(path string) (*Config, error) {
	// .env may set LOG_LEVEL, so it must be read before the first log line.
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	printBanner()
	logSystemInfo()

	logSection("CONFIGURATION")

	config, err := Load(path)
	if err != nil {
		return nil, err
	}
	logConfig(config)

	logSection("DIRECTORY SETUP")

	config.WorkDir, err = filepath.Abs(config.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory path: %w", err)
	}
	logging.Info("  Work directory (absolute): %s", config.WorkDir)

	if err := ensureDirectory(config.WorkDir, "work"); err != nil {
		return nil, fmt.Errorf("work directory error: %w", err)
	}
	if err := testWriteAccess(config.WorkDir); err != nil {
		return nil, fmt.Errorf("work directory is not writable (required for uploads): %w", err)
	}
	logging.Info("  [OK] Work directory is writable")

	if config.HistoryEnabled {
		config.DataDir, err = filepath.Abs(config.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
		}
		config.HistoryEnabled = setupOptionalDir(config.DataDir, "history")
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Uploads:  ENABLED (required)")
	logging.Info("    History:  %s", enabledString(config.HistoryEnabled))
	logging.Info("    Metrics:  %s", enabledString(config.MetricsEnabled))

	logSection("MEMORY")
	memory.ConfigureFromEnv()

	return config, nil
}

func logConfig(c *Config) {
	if c.ConfigFile != "" {
		logging.Info("  Config file:          %s", c.ConfigFile)
	}
	logging.Info("  PORT:                 %s", c.Port)
	logging.Info("  CORS_ORIGIN:          %s", strings.Join(c.CORSOrigins, ", "))
	logging.Info("  WORK_DIR:             %s", c.WorkDir)
	logging.Info("  DATA_DIR:             %s", c.DataDir)
	logging.Info("  MODE:                 %s", c.Mode)
	logging.Info("  MAX_UPLOAD_BYTES:     %d (%s)", c.MaxUploadBytes, humanize.IBytes(uint64(c.MaxUploadBytes)))
	logging.Info("  MAX_DURATION_SECONDS: %v", c.MaxDurationSeconds)
	logging.Info("  UPLOAD_TIMEOUT:       %v", c.UploadTimeout)
	logging.Info("  REQUEST_TIMEOUT:      %v", c.RequestTimeout)
	logging.Info("  PASS_TIMEOUT:         %v", c.PassTimeout)
	logging.Info("  MAX_CONCURRENT_JOBS:  %d", c.MaxConcurrentJobs)
	logging.Info("  FFMPEG_PATH:          %s", c.FFmpegPath)
	logging.Info("  FFPROBE_PATH:         %s", c.FFprobePath)
	logging.Info("  METRICS_ENABLED:      %v", c.MetricsEnabled)
	logging.Info("  METRICS_PORT:         %s", c.MetricsPort)
	logging.Info("  HISTORY_ENABLED:      %v", c.HistoryEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:    %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	if c.PassTimeout > c.RequestTimeout {
		logging.Warn("  PASS_TIMEOUT exceeds REQUEST_TIMEOUT; the request timeout will fire first")
	}
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func logSection(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

// LogToolsInit checks ffmpeg and ffprobe and logs their versions. Missing
// tools are reported but do not stop the server; /readyz reports them.
func LogToolsInit(ffmpegPath, ffprobePath string) {
	logSection("FFMPEG")

	for _, tool := range []struct{ name, path string }{
		{"ffmpeg", ffmpegPath},
		{"ffprobe", ffprobePath},
	} {
		version, err := CheckTool(context.Background(), tool.path)
		if err != nil {
			logging.Warn("  %s check failed: %v", tool.name, err)
			logging.Warn("  Uploads will fail until %s is installed", tool.name)
			continue
		}
		logging.Info("  [OK] %s: %s", tool.name, version)
	}
}

// LogWorkspaceInit logs the result of the startup sweep.
func LogWorkspaceInit(root string, swept int, duration time.Duration) {
	logSection("WORKSPACE INITIALIZATION")
	logging.Info("  Work directory: %s", root)
	if swept > 0 {
		logging.Info("  Removed %d stale workspace(s)", swept)
	}
	logging.Info("  [OK] Workspace ready in %v", duration)
}

// LogHistoryInit logs ledger initialization.
func LogHistoryInit(path string, duration time.Duration) {
	logSection("HISTORY INITIALIZATION")
	logging.Info("  Ledger: %s", path)
	logging.Info("  [OK] History initialized in %v", duration)
}

// LogJobSlots logs concurrency settings.
func LogJobSlots(slots int) {
	logging.Info("  Concurrent jobs: %d (GOMAXPROCS=%d)", slots, runtime.GOMAXPROCS(0))
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logSection("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-7s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	Mode            string
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logSection("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Mode:            %s", config.Mode)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Upload:        POST http://0.0.0.0:%s/process", config.Port)
	logging.Info("    Progress:      GET  http://0.0.0.0:%s/progress/{id}", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logSection(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

func printBanner() {
	banner := `
------------------------------------------------------------
   _____ __  ___ ____   ____  ________ ____  __
  / ___//  |/  // __ \ / __ \/_  __/ // /\ \/ /
  \__ \/ /|_/ // / / // / / / / / / _  /  \  /
 ___/ / /  / // /_/ // /_/ / / / / // /   / /
/____/_/  /_/ \____/ \____/ /_/ /_//_/   /_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// CheckTool resolves an executable and returns the first line of its
// -version output.
func CheckTool(ctx context.Context, name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", name, err)
	}

	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}
