package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-remote/internal/audit"
)

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: filter by action (connect, disconnect, scan, command, pair_start, pair_finish, launch_app)
//   - entity_type: filter by entity type (device, registry)
//   - entity_id: filter by device ID
//   - failed: "true" to return only failed actions
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	if v := q.Get("failed"); v != "" {
		failed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "failed must be true or false")
			return
		}
		filter.FailedOnly = failed
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
