// Package main provides the entry point for SMOOTHY.
//
// SMOOTHY accepts short video uploads over HTTP, runs them through ffmpeg to
// stabilize and smooth motion, and streams back a WebM file. Progress for a
// running upload can be polled by job id.
//
// # Commands
//
//   - serve (default): run the HTTP server
//   - process <input> -o <output>: smooth a local file with the same pipeline
//   - history: print recent job outcomes from the SQLite ledger
//   - version: print build information
//
// All commands accept --config to point at a TOML file. Environment variables
// and a .env file in the working directory override the file.
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 4000):
//     - POST /process: multipart upload, field "video"
//     - GET /progress/{id}: {"progress": n}
//     - GET /jobs, GET /api/history
//     - GET /livez, GET /readyz, GET /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Environment Variables
//
//   - PORT: main HTTP server port (default: 4000)
//   - CORS_ORIGIN: comma-separated allowed origins
//   - WORK_DIR: per-job scratch directories
//   - DATA_DIR: history database directory
//   - MODE: stabilize, blend or convert (default: stabilize)
//   - MAX_UPLOAD_BYTES, MAX_DURATION_SECONDS
//   - UPLOAD_TIMEOUT, REQUEST_TIMEOUT, PASS_TIMEOUT
//   - FFMPEG_PATH, FFPROBE_PATH
//   - MAX_CONCURRENT_JOBS
//   - METRICS_ENABLED, METRICS_PORT
//   - HISTORY_ENABLED, LOG_HEALTH_CHECKS, LOG_LEVEL
//   - MEMORY_LIMIT, MEMORY_RATIO: Go heap sizing (see internal/memory)
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server stops accepting requests and waits up to
// 30 seconds for running jobs. Jobs still running after that are canceled,
// which kills their ffmpeg process group and removes their workspace.
package main
