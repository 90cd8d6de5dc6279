package api

import (
	"net/http"

	"mlguard/internal/store"
)

// handleListAlerts returns matching alerts, most recent first.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := qInt(r, "limit", 50)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.store.ListAlerts(r.Context(), store.AlertFilter{
		ProjectID: r.URL.Query().Get("project_id"),
		ModelID:   r.URL.Query().Get("model_id"),
		Endpoint:  r.URL.Query().Get("endpoint"),
		Rule:      r.URL.Query().Get("rule"),
		Limit:     limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": rows})
}

// handleSlackTest sends a fixed test message; webhook failure is a 400.
func (s *Server) handleSlackTest(w http.ResponseWriter, r *http.Request) {
	if err := s.notify.Send(r.Context(), "ML Guard test message: Slack wiring works."); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true})
}
