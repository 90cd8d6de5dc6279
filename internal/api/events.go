package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"mlguard/internal/model"
	"mlguard/internal/telemetry"
)

// eventIn is the ingestion wire shape. Timestamp is optional and
// defaults to now; a zone-less value is read as UTC.
type eventIn struct {
	ProjectID string        `json:"project_id"`
	ModelID   string        `json:"model_id"`
	Endpoint  string        `json:"endpoint"`
	Timestamp string        `json:"timestamp"`
	LatencyMS *float64      `json:"latency_ms"`
	YPred     *int          `json:"y_pred"`
	YProba    *float64      `json:"y_proba"`
	Features  model.JSONMap `json:"features"`
}

var eventSchema = mustResolve(&jsonschema.Schema{
	Type:     "object",
	Required: []string{"project_id", "model_id", "features"},
	Properties: map[string]*jsonschema.Schema{
		"project_id": {Type: "string", MinLength: intPtr(1)},
		"model_id":   {Type: "string", MinLength: intPtr(1)},
		"endpoint":   {Type: "string"},
		"timestamp":  {Type: "string"},
		"latency_ms": {Type: "number", Minimum: floatPtr(0)},
		"y_pred":     {Type: "integer"},
		"y_proba":    {Type: "number", Minimum: floatPtr(0), Maximum: floatPtr(1)},
		"features":   {Type: "object", MinProperties: intPtr(1)},
	},
})

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	rs, err := s.Resolve(nil)
	if err != nil {
		panic(err)
	}
	return rs
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

type ingestResponse struct {
	Inserted int `json:"inserted"`
}

// handleIngestEvents accepts a single event object or an array of them
// and appends the batch in one transaction.
func (s *Server) handleIngestEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	raws, err := splitBatch(body)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(raws) == 0 {
		writeErrorMsg(w, http.StatusBadRequest, "empty event batch")
		return
	}

	events := make([]model.Event, 0, len(raws))
	for _, raw := range raws {
		ev, err := decodeEvent(raw)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, err.Error())
			return
		}
		events = append(events, *ev)
	}

	inserted, err := s.store.InsertEvents(r.Context(), events)
	if err != nil {
		writeError(w, err)
		return
	}
	telemetry.EventsIngested.Add(float64(inserted))
	writeJSON(w, http.StatusOK, ingestResponse{Inserted: inserted})
}

// splitBatch normalizes the body into a list of raw event objects.
func splitBatch(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errNoBody
	}
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, errMalformedBody
		}
		return raws, nil
	}
	return []json.RawMessage{trimmed}, nil
}

var (
	errNoBody        = jsonError("request body is required")
	errMalformedBody = jsonError("malformed JSON body")
)

type jsonError string

func (e jsonError) Error() string { return string(e) }

// decodeEvent validates one raw object against the ingestion schema and
// converts it to the storage shape.
func decodeEvent(raw json.RawMessage) (*model.Event, error) {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, errMalformedBody
	}
	if err := eventSchema.Validate(instance); err != nil {
		return nil, err
	}

	var in eventIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errMalformedBody
	}

	ts := time.Now().UTC()
	if in.Timestamp != "" {
		parsed, err := parseTimestamp(in.Timestamp)
		if err != nil {
			return nil, err
		}
		ts = parsed
	}
	endpoint := in.Endpoint
	if endpoint == "" {
		endpoint = "predict"
	}

	return &model.Event{
		ProjectID: in.ProjectID,
		ModelID:   in.ModelID,
		Endpoint:  endpoint,
		Timestamp: ts,
		LatencyMS: in.LatencyMS,
		YPred:     in.YPred,
		YProba:    in.YProba,
		Features:  in.Features,
	}, nil
}
