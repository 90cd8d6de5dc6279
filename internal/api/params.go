package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mlguard/internal/model"
)

// Query parameter helpers. Missing optional params fall back; malformed
// values are client errors surfaced by the caller.

func qStr(r *http.Request, name, fallback string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return fallback
}

func qRequired(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("query parameter %q is required", name)
	}
	return v, nil
}

func qBool(r *http.Request, name string, fallback bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("query parameter %q: want a boolean, got %q", name, v)
	}
	return b, nil
}

func qInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("query parameter %q: want an integer, got %q", name, v)
	}
	return n, nil
}

func qFloat(r *http.Request, name string, fallback float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("query parameter %q: want a number, got %q", name, v)
	}
	return f, nil
}

func qDay(r *http.Request, name string) (time.Time, error) {
	v, err := qRequired(r, name)
	if err != nil {
		return time.Time{}, err
	}
	return model.ParseDay(v)
}

func qDayOptional(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	d, err := model.ParseDay(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func qTimeOptional(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := parseTimestamp(v)
	if err != nil {
		return nil, fmt.Errorf("query parameter %q: %v", name, err)
	}
	return &t, nil
}

// qKey extracts the (project, model, endpoint) key; endpoint defaults
// to "predict".
func qKey(r *http.Request) (model.Key, error) {
	projectID, err := qRequired(r, "project_id")
	if err != nil {
		return model.Key{}, err
	}
	modelID, err := qRequired(r, "model_id")
	if err != nil {
		return model.Key{}, err
	}
	return model.Key{
		ProjectID: projectID,
		ModelID:   modelID,
		Endpoint:  qStr(r, "endpoint", "predict"),
	}, nil
}

// parseTimestamp accepts RFC3339; a value without a zone is read as
// UTC.
func parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q (want ISO8601)", v)
}
