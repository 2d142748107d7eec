package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnsupported = "unsupported"
	ErrCodeUnavailable = "unavailable"
	ErrCodeDevice      = "device_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeSessionError maps a session error to a response. Caller mistakes
// (unknown device, command or pairing state) are 4xx; device and link
// failures are 500 with the cause in the message.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, session.ErrUnknownCommand),
		errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, session.ErrPairingIncomplete):
		writeBadRequest(w, err.Error())
	case errors.Is(err, session.ErrCommandUnsupported):
		writeError(w, http.StatusBadRequest, ErrCodeUnsupported, err.Error())
	case errors.Is(err, session.ErrConnection),
		errors.Is(err, session.ErrScan),
		errors.Is(err, session.ErrCommandFailed),
		errors.Is(err, session.ErrPairingStart),
		errors.Is(err, session.ErrPairingFinish):
		writeError(w, http.StatusInternalServerError, ErrCodeDevice, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
