package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"mlguard/internal/costs"
	"mlguard/internal/drift"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response body")
	}
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Detail: msg})
}

// writeError maps core error kinds to HTTP status codes. Expected
// domain errors are client errors; everything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, drift.ErrInvalidInput),
		errors.Is(err, drift.ErrNoEvents),
		errors.Is(err, drift.ErrNoBaselines),
		errors.Is(err, drift.ErrBaselineMissing),
		errors.Is(err, drift.ErrNotEnoughData),
		errors.Is(err, costs.ErrNoHistory):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, costs.ErrNoTotalCost):
		writeErrorMsg(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
	}
}
