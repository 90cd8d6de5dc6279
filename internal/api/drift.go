package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mlguard/internal/alerts"
	"mlguard/internal/drift"
	"mlguard/internal/model"
	"mlguard/internal/telemetry"
)

// handleBaselineCapture captures one feature baseline from a selected
// event window.
func (s *Server) handleBaselineCapture(w http.ResponseWriter, r *http.Request) {
	key, err := qKey(r)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	feature, err := qRequired(r, "feature")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	startTS, err := qTimeOptional(r, "start_ts")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	endTS, err := qTimeOptional(r, "end_ts")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	startDay, err := qDayOptional(r, "start_day")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	endDay, err := qDayOptional(r, "end_day")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := qInt(r, "n", drift.DefaultRecentN)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	nBins, err := qInt(r, "n_bins", drift.DefaultBins)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	topK, err := qInt(r, "top_k_categories", drift.DefaultTopK)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	overwrite, err := qBool(r, "overwrite", true)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.drift.CaptureBaseline(r.Context(), key, drift.CaptureParams{
		Feature:        feature,
		StartTS:        startTS,
		EndTS:          endTS,
		StartDay:       startDay,
		EndDay:         endDay,
		TZ:             qStr(r, "tz", "UTC"),
		N:              n,
		NBins:          nBins,
		TopKCategories: topK,
		Overwrite:      overwrite,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleDriftCompute computes PSI for one feature on one day.
func (s *Server) handleDriftCompute(w http.ResponseWriter, r *http.Request) {
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
	feature, err := qRequired(r, "feature")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	minSamples, err := qInt(r, "min_samples", drift.DefaultMinSamples)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.drift.ComputeOne(r.Context(), key, day, feature, qStr(r, "tz", "UTC"), minSamples)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": key.ProjectID,
		"model_id":   key.ModelID,
		"endpoint":   key.Endpoint,
		"day":        model.FormatDay(day),
		"feature":    feature,
		"result":     res,
	})
}

// computeAllResponse is the drift result plus the optional alerting
// outcome.
type computeAllResponse struct {
	*drift.AllResult
	AlertCreated   *bool   `json:"alert_created"`
	AlertID        *int64  `json:"alert_id"`
	SlackAlertSent *bool   `json:"slack_alert_sent"`
	SlackEnabled   *bool   `json:"slack_enabled"`
	SlackNote      *string `json:"slack_note"`
	Threshold      float64 `json:"threshold"`
}

// handleDriftComputeAll computes drift for every baselined feature and,
// when alert=true and max_psi crosses the threshold, raises a deduped
// drift alert and optionally notifies Slack. Notification failure never
// fails the request.
func (s *Server) handleDriftComputeAll(w http.ResponseWriter, r *http.Request) {
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
	minSamples, err := qInt(r, "min_samples", drift.DefaultMinSamples)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	overwrite, err := qBool(r, "overwrite", true)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	alert, err := qBool(r, "alert", false)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	threshold, err := qFloat(r, "threshold", drift.AlertThreshold)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.drift.ComputeAll(r.Context(), key, day, tz, minSamples, overwrite)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := computeAllResponse{AllResult: result, Threshold: threshold}
	if alert {
		s.raiseDriftAlert(r, &resp, key, day, tz, threshold)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) raiseDriftAlert(r *http.Request, resp *computeAllResponse, key model.Key, day time.Time, tz string, threshold float64) {
	result := resp.AllResult
	enabled := s.notify.Enabled()
	resp.SlackEnabled = &enabled

	if result.MaxPSI < threshold {
		resp.AlertCreated = boolPtr(false)
		resp.SlackAlertSent = boolPtr(false)
		resp.SlackNote = strPtr("No alert: max_psi below threshold.")
		return
	}

	payload := model.JSONMap{}
	if raw, err := json.Marshal(result); err == nil {
		_ = json.Unmarshal(raw, (*map[string]any)(&payload))
	}

	created, row, err := s.alerts.CreateOnce(r.Context(), key, day,
		alerts.RuleDrift, result.MaxSeverity, result.MaxPSI, threshold, payload)
	if err != nil {
		resp.AlertCreated = boolPtr(false)
		resp.SlackAlertSent = boolPtr(false)
		resp.SlackNote = strPtr("Alert creation failed: " + err.Error())
		return
	}
	resp.AlertCreated = &created
	if row != nil {
		resp.AlertID = &row.ID
	}
	if created {
		telemetry.AlertsCreated.WithLabelValues(alerts.RuleDrift).Inc()
	}

	if !enabled {
		resp.SlackAlertSent = boolPtr(false)
		resp.SlackNote = strPtr("Slack disabled; no message sent.")
		return
	}
	text := fmt.Sprintf("ML Guard drift alert: %s day=%s tz=%s max_feature=%s psi=%.3f severity=%s threshold=%g",
		key, model.FormatDay(day), tz, result.MaxPSIFeature, result.MaxPSI, result.MaxSeverity, threshold)
	if err := s.notify.Send(r.Context(), text); err != nil {
		resp.SlackAlertSent = boolPtr(false)
		resp.SlackNote = strPtr(err.Error())
		return
	}
	resp.SlackAlertSent = boolPtr(true)
	resp.SlackNote = strPtr("Slack message sent.")
}

// handleDriftDaily returns the stored drift row or JSON null.
func (s *Server) handleDriftDaily(w http.ResponseWriter, r *http.Request) {
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

	row, err := s.store.DailyDrift(r.Context(), key, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
