package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-remote/internal/session"
)

// FinishPairingRequest is the body of POST /devices/{id}/pair/finish.
type FinishPairingRequest struct {
	PIN string `json:"pin"`
}

// handleStartPairing begins pairing. The device shows a PIN on screen.
//
// Query parameters:
//   - protocol: companion (default) or airplay
func (s *Server) handleStartPairing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	protocol := session.ParseProtocol(r.URL.Query().Get("protocol"))

	prompt, err := s.sessions.StartPairing(r.Context(), id, protocol)
	if err != nil {
		s.logger.Error("failed to start pairing", "device_id", id, "protocol", protocol, "error", err)
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

// handleFinishPairing submits the PIN and returns the pairing credentials.
// Credentials appear only in this response; they are not stored or logged.
func (s *Server) handleFinishPairing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req FinishPairingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.PIN = strings.TrimSpace(req.PIN)
	if req.PIN == "" {
		writeBadRequest(w, "pin is required")
		return
	}

	result, err := s.sessions.FinishPairing(r.Context(), id, req.PIN)
	if err != nil {
		s.logger.Warn("failed to finish pairing", "device_id", id, "error", err)
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Pairing successful",
		"protocol":    result.Protocol,
		"credentials": result.Credentials,
	})
}

// handleCancelPairing abandons an unfinished pairing.
func (s *Server) handleCancelPairing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": s.sessions.CancelPairing(id)})
}
