package handlers

import (
	"net/http"
)

// ReadinessResponse explains why the service is or is not ready.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when every configured tool resolves and
// the work directory accepts new workspaces.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	response := ReadinessResponse{Status: "ready", Checks: map[string]string{}}

	for _, tool := range h.config.Tools {
		if _, err := h.lookPath(tool); err != nil {
			response.Checks[tool] = err.Error()
			response.Status = "not_ready"
			continue
		}
		response.Checks[tool] = "ok"
	}

	if err := h.scratch.CheckWritable(); err != nil {
		response.Checks["workDir"] = err.Error()
		response.Status = "not_ready"
	} else {
		response.Checks["workDir"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "ready" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if r.Method != http.MethodHead {
		writeJSON(w, response)
	}
}
