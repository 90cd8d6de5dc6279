package api

import (
	"net/http"

	"mlguard/internal/model"
)

// handleDiscoverModels lists the (model, endpoint) pairs seen for a
// project.
func (s *Server) handleDiscoverModels(w http.ResponseWriter, r *http.Request) {
	projectID, err := qRequired(r, "project_id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	keys, err := s.store.KeysForProject(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"models":     keys,
	})
}

// handleDiscoverDays lists the UTC dates having events for a key.
func (s *Server) handleDiscoverDays(w http.ResponseWriter, r *http.Request) {
	key, err := qKey(r)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	days, err := s.store.DaysWithEvents(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, model.FormatDay(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": key.ProjectID,
		"model_id":   key.ModelID,
		"endpoint":   key.Endpoint,
		"days":       out,
	})
}
