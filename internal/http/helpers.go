package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budgetflow/internal/allocation"
	"budgetflow/internal/core"
	"budgetflow/internal/forecast"
	"budgetflow/internal/log"
	"budgetflow/internal/services"
	"budgetflow/internal/storage"
)

var errBadBody = errors.New("malformed request body")

// errorBody is the shape of every non-2xx JSON response. Problems is set
// for rejected batches and Path for cycles.
type errorBody struct {
	Error     string         `json:"error"`
	Problems  []core.Problem `json:"problems,omitempty"`
	Path      []string       `json:"path,omitempty"`
	RawInput  []core.Entry   `json:"rawInput,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON value into v, rejecting unknown fields and
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, allocation.ErrInvalidSlider):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrCycle),
		errors.Is(err, core.ErrNoAdjustableSliders),
		errors.Is(err, core.ErrSliderLocked),
		errors.Is(err, services.ErrNotSeeded):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnknownSlider), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, forecast.ErrBadRequest),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes its JSON form. Internal errors are not
// echoed to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var verr *core.ValidationError
	var cerr *core.CycleError
	switch {
	case errors.As(err, &verr):
		body.Problems = verr.Problems
	case errors.As(err, &cerr):
		body.Path = cerr.Path
		body.RawInput = cerr.RawInput
	}

	fields := log.NewFields().WithOperation(op).WithError(err).ToSlice()
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		body.Error = http.StatusText(status)
		if errors.Is(err, forecast.ErrDisabled) {
			body.Error = err.Error()
		}
		body.RequestID = w.Header().Get("X-Request-ID")
		logger.ErrorContext(r.Context(), "Request failed", fields...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields...)
	}
	writeJSON(w, status, body)
}

func pathMonth(r *http.Request) (core.MonthKey, error) {
	return core.ParseMonthKey(r.PathValue("month"))
}

// queryMonth reads a YYYY-MM query parameter, defaulting to the current
// month.
func queryMonth(r *http.Request, name string) (core.MonthKey, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.MonthOf(time.Now()), nil
	}
	return core.ParseMonthKey(v)
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadBody, name)
	}
	return n, nil
}
