package request

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/telegis/platform/internal/shared/database"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	db *database.DB
}

// NewRepository creates an access request repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const requestColumns = `id, user_id, regions, reason, status, submitted_at, reviewed_by, reviewed_at, review_notes`

func (r *Repository) Insert(ctx context.Context, req *Request) error {
	query := `
		INSERT INTO authz.access_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Pool.Exec(ctx, query,
		req.ID, req.UserID, req.Regions, req.Reason, req.Status,
		req.SubmittedAt, req.ReviewedBy, req.ReviewedAt, req.ReviewNotes)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id types.ID) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM authz.access_requests WHERE id = $1`

	var req Request
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.UserID, &req.Regions, &req.Reason, &req.Status,
		&req.SubmittedAt, &req.ReviewedBy, &req.ReviewedAt, &req.ReviewNotes)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("access request", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &req, nil
}

func (r *Repository) Update(ctx context.Context, req *Request) error {
	query := `
		UPDATE authz.access_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
		WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query,
		req.ID, req.Status, req.ReviewedBy, req.ReviewedAt, req.ReviewNotes)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("access request", req.ID.String())
	}
	return nil
}

func (r *Repository) ListForUser(ctx context.Context, userID types.ID) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM authz.access_requests WHERE user_id = $1 ORDER BY submitted_at DESC`
	return r.list(ctx, query, userID)
}

func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM authz.access_requests WHERE status = $1 ORDER BY submitted_at DESC`
	return r.list(ctx, query, status)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(
			&req.ID, &req.UserID, &req.Regions, &req.Reason, &req.Status,
			&req.SubmittedAt, &req.ReviewedBy, &req.ReviewedAt, &req.ReviewNotes); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
