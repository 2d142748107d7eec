package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListDevices returns every device from the latest scan with its
// connection status.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.sessions.ListDevices()
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleScanDevices replaces the device list with a fresh scan.
// Open connections to devices that disappeared stay open.
func (s *Server) handleScanDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.sessions.Rescan(r.Context())
	if err != nil {
		s.logger.Error("device scan failed", "error", err)
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device. Model and OS version come from the
// live connection when there is one.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	device, err := s.sessions.DeviceInfo(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// handleConnect opens (or reuses) the connection to a device.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.sessions.Connect(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"device_id": result.DeviceID,
		"name":      result.Name,
	})
}

// handleDisconnect closes the connection to a device. Disconnecting a
// device that is not connected succeeds.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	message := "Device was not connected"
	if s.sessions.Disconnect(id) {
		message = "Disconnected from " + id
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}
