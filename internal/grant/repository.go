package grant

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/telegis/platform/internal/shared/database"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	db *database.DB
}

// NewRepository creates a grant repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const grantColumns = `id, user_id, region, granted_by, granted_at, expires_at, reason, active, revoked_at, revoked_by, revoked_reason`

func (r *Repository) Insert(ctx context.Context, g *Grant) error {
	query := `
		INSERT INTO authz.temporary_grants (` + grantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Pool.Exec(ctx, query,
		g.ID, g.UserID, g.Region, g.GrantedBy, g.GrantedAt, g.ExpiresAt,
		g.Reason, g.Active, g.RevokedAt, g.RevokedBy, g.RevokedReason)
	if err != nil {
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id types.ID) (*Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM authz.temporary_grants WHERE id = $1`

	var g Grant
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&g.ID, &g.UserID, &g.Region, &g.GrantedBy, &g.GrantedAt, &g.ExpiresAt,
		&g.Reason, &g.Active, &g.RevokedAt, &g.RevokedBy, &g.RevokedReason)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("grant", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return &g, nil
}

func (r *Repository) Update(ctx context.Context, g *Grant) error {
	query := `
		UPDATE authz.temporary_grants
		SET expires_at = $2, active = $3, revoked_at = $4, revoked_by = $5, revoked_reason = $6
		WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query,
		g.ID, g.ExpiresAt, g.Active, g.RevokedAt, g.RevokedBy, g.RevokedReason)
	if err != nil {
		return fmt.Errorf("failed to update grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("grant", g.ID.String())
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id types.ID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM authz.temporary_grants WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListForUser(ctx context.Context, userID types.ID) ([]Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM authz.temporary_grants WHERE user_id = $1 ORDER BY granted_at DESC`
	return r.list(ctx, query, userID)
}

func (r *Repository) ListAll(ctx context.Context) ([]Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM authz.temporary_grants ORDER BY granted_at DESC`
	return r.list(ctx, query)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Grant, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(
			&g.ID, &g.UserID, &g.Region, &g.GrantedBy, &g.GrantedAt, &g.ExpiresAt,
			&g.Reason, &g.Active, &g.RevokedAt, &g.RevokedBy, &g.RevokedReason); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *Repository) MarkExpired(ctx context.Context, t time.Time) (int, error) {
	query := `
		UPDATE authz.temporary_grants
		SET active = FALSE
		WHERE active AND revoked_at IS NULL AND expires_at <= $1`

	tag, err := r.db.Pool.Exec(ctx, query, t)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired grants: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
