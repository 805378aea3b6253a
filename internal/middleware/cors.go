package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns a middleware that allows browser uploads from origins,
// with credentials. An empty list allows no cross-origin requests.
func CORS(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Job-ID", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Job-ID", "Content-Disposition", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           600,
	}
	if len(origins) == 0 {
		// rs/cors treats an empty list as "*".
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(opts).Handler
}
