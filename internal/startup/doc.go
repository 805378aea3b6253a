// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// [Load] builds a [Config] in layers: built-in defaults, then a TOML file,
// then a .env file in the working directory, then environment variables.
// The TOML file is the --config flag, else SMOOTHY_CONFIG, else
// ./smoothy.toml if present. Keys use snake_case versions of the variables
// below (work_dir, pass_timeout, ...).
//
//   - PORT: HTTP port (default: 4000)
//   - CORS_ORIGIN: comma-separated allowed browser origins
//   - WORK_DIR: per-job workspaces (default: $TMPDIR/smoothy)
//   - DATA_DIR: history ledger directory (default: ./data)
//   - MAX_UPLOAD_BYTES: upload ceiling (default: 100 MiB)
//   - MAX_DURATION_SECONDS: longest accepted video (default: 30)
//   - UPLOAD_TIMEOUT, REQUEST_TIMEOUT, PASS_TIMEOUT: Go durations (2m, 5m, 3m)
//   - MODE: stabilize, blend or convert (default: stabilize)
//   - FFMPEG_PATH, FFPROBE_PATH: executables (default: from PATH)
//   - MAX_CONCURRENT_JOBS: job slots (default: GOMAXPROCS, at most 4)
//   - METRICS_ENABLED, METRICS_PORT: Prometheus server (default: true, 9090)
//   - HISTORY_ENABLED: SQLite outcome ledger (default: true)
//   - LOG_HEALTH_CHECKS: log /livez and /readyz requests (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// Invalid numbers and durations in the environment are logged and ignored.
// Invalid values in the TOML file are errors.
//
// [LoadConfig] wraps Load for the server: it prints the banner and the
// effective configuration, and prepares the work and data directories.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
