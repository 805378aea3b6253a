package handlers

import (
	"net/http"

	"smoothy/internal/startup"
)

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	buildInfo := startup.GetBuildInfo()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, struct {
		startup.BuildInfo
		Mode string `json:"mode"`
	}{buildInfo, string(h.pipeline.Mode())})
}
