package handlers

import (
	"net/http"
	"strconv"

	"smoothy/internal/history"
	"smoothy/internal/logging"
)

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Records []history.Record `json:"records"`
	Summary map[string]int   `json:"summary"`
}

// GetHistory returns recent job outcomes and a count per outcome.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, "History is disabled", http.StatusNotFound)
		return
	}

	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		logging.Error("Failed to read history: %v", err)
		writeJSONError(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	summary, err := h.history.Summary(r.Context())
	if err != nil {
		logging.Error("Failed to summarize history: %v", err)
		writeJSONError(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []history.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, HistoryResponse{Records: records, Summary: summary})
}
