// Package errors translates workflow faults into JSON API responses.
//
// Handlers hand every non-nil error to Respond, which picks the HTTP
// status from the fault kind and writes a small JSON body. Internal
// and unclassified errors are logged and reported with a generic
// message so details never reach the client.
package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dalemusser/straywatch/internal/app/system/faults"
)

// payload is the wire shape for every error response.
type payload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(kind faults.Kind) int {
	switch kind {
	case faults.KindValidation:
		return http.StatusBadRequest
	case faults.KindAuthorization:
		return http.StatusForbidden
	case faults.KindNotFound:
		return http.StatusNotFound
	case faults.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorLogger writes fault responses and records server-side failures.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger returns an ErrorLogger backed by the given logger.
func NewErrorLogger(log *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: log}
}

// Respond writes err as a JSON error response. Internal faults are
// logged with the request path; the client only sees a generic message.
func (e *ErrorLogger) Respond(w http.ResponseWriter, r *http.Request, err error) {
	kind := faults.KindOf(err)
	if kind == faults.KindInternal {
		e.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	WriteJSON(w, statusFor(kind), string(kind), faults.Message(err))
}

// BadRequest reports a malformed request body or parameter.
func (e *ErrorLogger) BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, string(faults.KindValidation), msg)
}

// Unauthorized reports a request with no signed-in user.
func (e *ErrorLogger) Unauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, string(faults.KindAuthorization), "sign in required")
}

// Forbidden reports a signed-in user lacking permission.
func (e *ErrorLogger) Forbidden(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "not allowed"
	}
	WriteJSON(w, http.StatusForbidden, string(faults.KindAuthorization), msg)
}

// WriteJSON writes a JSON error body with the given status.
func WriteJSON(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload{Error: kind, Message: msg})
}
