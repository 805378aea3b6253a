package middleware

import (
	"net/http"
	"runtime/debug"

	"smoothy/internal/logging"
	"smoothy/internal/metrics"
)

// Recovery turns a handler panic into a 500 response. Job cleanup runs in
// the handler's own defers before the panic reaches this middleware.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := newResponseWriter(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			metrics.HTTPPanicsTotal.Inc()
			logging.Error("panic serving %s %s: %v\n%s",
				sanitizeLogField(r.Method), sanitizeLogField(r.URL.Path), rec, debug.Stack())

			if !wrapped.wroteHeader {
				http.Error(wrapped, "Internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(wrapped, r)
	})
}
