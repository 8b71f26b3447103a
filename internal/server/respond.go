package server

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/koustreak/d1meta/internal/errs"
	"github.com/koustreak/d1meta/internal/logger"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Op      string `json:"op,omitempty"`
	Table   string `json:"table,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"unknown","message":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

// statusFor picks the HTTP status for err. Kinds are checked across the
// whole chain, so a query failure caused by a timeout is a 504.
func statusFor(err error) int {
	switch {
	case errs.IsInvalidInput(err):
		return http.StatusBadRequest
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsPermissionDenied(err):
		return http.StatusForbidden
	case errs.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errs.IsConnectionFailed(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: errs.KindOf(err).String(), Message: err.Error()}

	var e *errs.Error
	if errors.As(err, &e) {
		body.Op = e.Op
		body.Table = e.Table
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]any{"status": status})
	}
	writeJSON(w, status, body)
}
