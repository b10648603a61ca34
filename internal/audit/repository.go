package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/telegis/platform/internal/shared/errors"
)

// Repository persists the audit trail in PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends an entry
func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		return errors.Wrap(err, "failed to marshal details")
	}

	query := `
		INSERT INTO authz.audit_entries (
			id, ts, user_id, user_name, user_role,
			event_type, severity, region, tool_name,
			action, details, success, error_message
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err = r.pool.Exec(ctx, query,
		e.ID, e.Timestamp, e.UserID, e.UserName, e.UserRole,
		e.EventType, e.Severity, e.Region, e.ToolName,
		e.Action, detailsJSON, e.Success, e.ErrorMessage,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert audit entry")
	}
	return nil
}

// List returns matching entries, newest first
func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if !f.UserID.IsZero() {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argNum))
		args = append(args, f.UserID)
		argNum++
	}
	if f.Region != "" {
		conditions = append(conditions, fmt.Sprintf("region = $%d", argNum))
		args = append(args, f.Region)
		argNum++
	}
	if f.EventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argNum))
		args = append(args, f.EventType)
		argNum++
	}
	if f.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argNum))
		args = append(args, f.Severity)
		argNum++
	}
	if f.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", argNum))
		args = append(args, *f.Success)
		argNum++
	}
	if f.From != nil {
		conditions = append(conditions, fmt.Sprintf("ts >= $%d", argNum))
		args = append(args, *f.From)
		argNum++
	}
	if f.To != nil {
		conditions = append(conditions, fmt.Sprintf("ts <= $%d", argNum))
		args = append(args, *f.To)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limitClause := ""
	if f.Limit > 0 {
		limitClause = fmt.Sprintf("LIMIT $%d", argNum)
		args = append(args, f.Limit)
	}

	query := fmt.Sprintf(`
		SELECT id, ts, user_id, user_name, user_role,
		       event_type, severity, region, tool_name,
		       action, details, success, error_message
		FROM authz.audit_entries
		%s
		ORDER BY seq DESC
		%s`, whereClause, limitClause)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var detailsJSON []byte
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.UserID, &e.UserName, &e.UserRole,
			&e.EventType, &e.Severity, &e.Region, &e.ToolName,
			&e.Action, &detailsJSON, &e.Success, &e.ErrorMessage,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal details")
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read audit entries")
	}
	return entries, nil
}

// Count returns the total number of entries
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM authz.audit_entries`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count audit entries")
	}
	return count, nil
}

// EvictOldest removes the n oldest entries by insertion order
func (r *Repository) EvictOldest(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM authz.audit_entries
		WHERE seq IN (
			SELECT seq FROM authz.audit_entries
			ORDER BY seq ASC
			LIMIT $1
		)`, n)
	if err != nil {
		return 0, errors.Wrap(err, "failed to evict audit entries")
	}
	return int(tag.RowsAffected()), nil
}

var _ Store = (*Repository)(nil)
