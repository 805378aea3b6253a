// Package middleware provides HTTP middleware for the smoothy server.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with the job id column
//   - Prometheus request metrics labelled by route template
//   - CORS for the browser upload client
//   - Panic recovery
package middleware
