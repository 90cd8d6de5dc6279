package api

import (
	"net/http"
)

// handleMetricsCompute computes and stores the daily snapshot for a
// (key, day) and returns it.
func (s *Server) handleMetricsCompute(w http.ResponseWriter, r *http.Request) {
	key, err := qKey(r)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := qDay(r, "day")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	tz := qStr(r, "tz", "UTC")
	overwrite, err := qBool(r, "overwrite", true)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	row, err := s.metrics.ComputeDaily(r.Context(), key, day, tz, overwrite)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleMetricsDaily returns the stored snapshot or JSON null.
func (s *Server) handleMetricsDaily(w http.ResponseWriter, r *http.Request) {
	key, err := qKey(r)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := qDay(r, "day")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	row, err := s.store.DailyMetric(r.Context(), key, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
