// Package handlers provides the HTTP handlers for the smoothing service.
//
// It includes handlers for:
//   - Video upload, processing and result download
//   - Job progress polling and active job listing
//   - Job outcome history
//   - Liveness, readiness and version
package handlers
