package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mlguard/internal/alerts"
	"mlguard/internal/costs"
	"mlguard/internal/model"
	"mlguard/internal/telemetry"
)

// The cost alert key reuses the (project, model, endpoint) shape with
// synthetic billing coordinates.
const (
	costModelID  = "__aws__"
	costEndpoint = "__billing__"
)

func (s *Server) costsConfigured(w http.ResponseWriter) bool {
	if s.costs == nil {
		writeErrorMsg(w, http.StatusBadRequest, "cost explorer is not configured")
		return false
	}
	return true
}

// handleCostsPull fetches one day of billing data and stores it.
func (s *Server) handleCostsPull(w http.ResponseWriter, r *http.Request) {
	if !s.costsConfigured(w) {
		return
	}
	projectID, err := qRequired(r, "project_id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := qDay(r, "day")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	overwrite, err := qBool(r, "overwrite", true)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.costs.PullAndStore(r.Context(), projectID, day, overwrite)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCostsDaily returns the stored cost rows for (project, day).
func (s *Server) handleCostsDaily(w http.ResponseWriter, r *http.Request) {
	if !s.costsConfigured(w) {
		return
	}
	projectID, err := qRequired(r, "project_id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := qDay(r, "day")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.costs.List(r.Context(), projectID, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"day":        model.FormatDay(day),
		"rows":       rows,
	})
}

// costSpikeResponse is the spike evaluation plus the optional alerting
// outcome.
type costSpikeResponse struct {
	ProjectID string `json:"project_id"`
	Day       string `json:"day"`
	*costs.SpikeResult
	AlertCreated   *bool   `json:"alert_created"`
	AlertID        *int64  `json:"alert_id"`
	SlackAlertSent *bool   `json:"slack_alert_sent"`
	SlackEnabled   *bool   `json:"slack_enabled"`
	SlackNote      *string `json:"slack_note"`
}

// handleCostsCheckSpike compares the day's TOTAL against the trailing
// average and optionally raises a deduped cost_spike alert.
func (s *Server) handleCostsCheckSpike(w http.ResponseWriter, r *http.Request) {
	if !s.costsConfigured(w) {
		return
	}
	projectID, err := qRequired(r, "project_id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := qDay(r, "day")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	lookback, err := qInt(r, "lookback_days", 7)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	pct, err := qFloat(r, "pct", 0.50)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	minAbsUSD, err := qFloat(r, "min_abs_usd", 5.0)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	alert, err := qBool(r, "alert", true)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.costs.CheckSpike(r.Context(), projectID, day, lookback, pct, minAbsUSD)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := costSpikeResponse{
		ProjectID:   projectID,
		Day:         model.FormatDay(day),
		SpikeResult: res,
	}
	if alert && res.IsSpike {
		s.raiseCostAlert(r, &resp, projectID, day, res)
	} else if alert {
		resp.AlertCreated = boolPtr(false)
		resp.SlackAlertSent = boolPtr(false)
		resp.SlackNote = strPtr("No alert: below threshold.")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) raiseCostAlert(r *http.Request, resp *costSpikeResponse, projectID string, day time.Time, res *costs.SpikeResult) {
	enabled := s.notify.Enabled()
	resp.SlackEnabled = &enabled

	payload := model.JSONMap{}
	if raw, err := json.Marshal(res); err == nil {
		_ = json.Unmarshal(raw, (*map[string]any)(&payload))
	}

	key := model.Key{ProjectID: projectID, ModelID: costModelID, Endpoint: costEndpoint}
	created, row, err := s.alerts.CreateOnce(r.Context(), key, day,
		alerts.RuleCostSpike, res.Severity, res.Value, res.Threshold, payload)
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
		telemetry.AlertsCreated.WithLabelValues(alerts.RuleCostSpike).Inc()
	}

	if !enabled {
		resp.SlackAlertSent = boolPtr(false)
		resp.SlackNote = strPtr("Slack disabled; no message sent.")
		return
	}
	text := fmt.Sprintf("ML Guard cost spike: project=%s day=%s total=$%.2f avg=$%.2f threshold=$%.2f (+%.0f%%)",
		projectID, model.FormatDay(day), res.Value, res.TrailingAvg, res.Threshold, res.Pct*100)
	if err := s.notify.Send(r.Context(), text); err != nil {
		resp.SlackAlertSent = boolPtr(false)
		resp.SlackNote = strPtr("Slack send failed: " + err.Error())
		return
	}
	resp.SlackAlertSent = boolPtr(true)
	resp.SlackNote = strPtr("Slack message sent.")
}
