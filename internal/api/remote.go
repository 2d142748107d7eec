package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleRemoteCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	command := chi.URLParam(r, "command")

	if err := s.sessions.SendCommand(r.Context(), id, command); err != nil {
		s.logger.Warn("remote command failed", "device_id", id, "command", command, "error", err)
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "command": command})
}

func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	commands := s.sessions.Commands()
	writeJSON(w, http.StatusOK, map[string]any{"commands": commands, "count": len(commands)})
}

func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.sessions.NowPlaying(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	result, err := s.sessions.ListApps(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	body := map[string]any{
		"device_id": result.DeviceID,
		"apps":      result.Apps,
		"supported": result.Supported,
	}
	if !result.Supported {
		body["message"] = "App listing not supported on this device"
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleLaunchApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	appID := chi.URLParam(r, "app_id")

	if err := s.sessions.LaunchApp(r.Context(), id, appID); err != nil {
		s.logger.Warn("app launch failed", "device_id", id, "app_id", appID, "error", err)
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "app_id": appID})
}
