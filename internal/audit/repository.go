package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size bounds for List.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// timeLayout is fixed-width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// AuditLog is a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Source     string         `json:"source"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which audit logs List returns.
type Filter struct {
	Action     string // connect, disconnect, scan, command, pair_start, pair_finish, launch_app
	EntityType string // device or registry
	EntityID   string
	FailedOnly bool
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult is one page of audit logs.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository stores and queries audit logs.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteRepository stores audit logs in the audit_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry, generating ID and CreatedAt when empty.
func (r *SQLiteRepository) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()[:8]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	var detailsJSON *string
	if len(log.Details) > 0 {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	var duration any
	if log.DurationMS > 0 {
		duration = log.DurationMS
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, source, success, error, duration_ms, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Action, log.EntityType,
		nullableString(log.EntityID), log.Source,
		log.Success, nullableString(log.Error), duration,
		detailsJSON,
		log.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}

	return nil
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns audit logs matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := buildWhere(filter)

	countQuery := "SELECT COUNT(*) FROM audit_logs" + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	query := `SELECT id, action, entity_type, entity_id, source, success, error, duration_ms, details, created_at
		FROM audit_logs` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?` //nolint:gosec // WHERE built from parameterised conditions
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// DeleteBefore removes entries created before cutoff and returns how many.
func (r *SQLiteRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM audit_logs WHERE created_at < ?",
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting audit logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted audit logs: %w", err)
	}
	return n, nil
}

func buildWhere(filter Filter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "success = 0")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanLog(rows *sql.Rows) (AuditLog, error) {
	var log AuditLog
	var entityID, errText, detailsJSON sql.NullString
	var duration sql.NullInt64
	var createdAt string

	if err := rows.Scan(&log.ID, &log.Action, &log.EntityType, &entityID, &log.Source,
		&log.Success, &errText, &duration, &detailsJSON, &createdAt); err != nil {
		return AuditLog{}, fmt.Errorf("scanning audit log: %w", err)
	}

	log.EntityID = entityID.String
	log.Error = errText.String
	log.DurationMS = duration.Int64
	if detailsJSON.Valid && detailsJSON.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
			log.Details = details
		}
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return AuditLog{}, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	log.CreatedAt = t

	return log, nil
}
