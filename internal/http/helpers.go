package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fincore/internal/core"
)

const maxBodyBytes = 1 << 20 // 1MB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("decode request body: trailing data")
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

// writeError maps the error taxonomy onto HTTP statuses: bad input is
// 422, missing rows 404, illegal state changes 409, broken invariants
// 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, core.ErrUnknownAccount),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrUnknownMerchant),
		errors.Is(err, core.ErrUnknownTag),
		errors.Is(err, core.ErrZeroAmount),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyAllocations),
		errors.Is(err, core.ErrSelfTransfer),
		errors.Is(err, core.ErrSumMismatch),
		errors.Is(err, core.ErrCurrencyMismatch),
		errors.Is(err, core.ErrCategoryCycle):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrNoValuation):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrAlreadySplit):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// parseAsOf reads the optional as_of query parameter, accepting RFC3339
// timestamps or plain dates. A date means end of that day.
func parseAsOf(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		t := d.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("invalid as_of %q", raw)
}
