package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"smoothy/internal/jobs"
	"smoothy/internal/logging"
)

// ProgressResponse is the body of GET /progress/{id}.
type ProgressResponse struct {
	Progress int `json:"progress"`
}

// JobsResponse is the body of GET /jobs.
type JobsResponse struct {
	Jobs  []jobs.Snapshot `json:"jobs"`
	Slots SlotsInfo       `json:"slots"`
}

// SlotsInfo reports processing slot usage.
type SlotsInfo struct {
	Size  int `json:"size"`
	InUse int `json:"inUse"`
}

// Root answers GET / so a browser or load balancer can see the server is up.
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte("SMOOTHY server running")); err != nil {
		logging.Debug("failed to write root response: %v", err)
	}
}

// GetProgress returns the last recorded percentage for a job. Unknown ids,
// including jobs that already finished, report 0.
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if parsed, err := jobs.ParseID(id); err == nil {
		id = parsed
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, ProgressResponse{Progress: h.registry.Progress(id)})
}

// ListJobs returns a snapshot of every active job.
func (h *Handlers) ListJobs(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.registry.Snapshot()
	if snapshot == nil {
		snapshot = []jobs.Snapshot{}
	}

	response := JobsResponse{Jobs: snapshot}
	if h.slots != nil {
		response.Slots = SlotsInfo{Size: h.slots.Size(), InUse: h.slots.InUse()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, response)
}
