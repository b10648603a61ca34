package zone

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

// NewRepository creates a zone repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertZone(ctx context.Context, z *Zone) error {
	query := `
		INSERT INTO authz.zones (id, name, description, color, regions, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Pool.Exec(ctx, query,
		z.ID, z.Name, z.Description, z.Color, z.Regions, z.CreatedBy, z.CreatedAt, z.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert zone: %w", err)
	}
	return nil
}

func (r *Repository) GetZone(ctx context.Context, id types.ID) (*Zone, error) {
	query := `
		SELECT id, name, description, color, regions, created_by, created_at, updated_at
		FROM authz.zones WHERE id = $1`

	var z Zone
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&z.ID, &z.Name, &z.Description, &z.Color, &z.Regions, &z.CreatedBy, &z.CreatedAt, &z.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("zone", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	return &z, nil
}

func (r *Repository) ListZones(ctx context.Context) ([]Zone, error) {
	query := `
		SELECT id, name, description, color, regions, created_by, created_at, updated_at
		FROM authz.zones ORDER BY name`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.Description, &z.Color, &z.Regions, &z.CreatedBy, &z.CreatedAt, &z.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (r *Repository) UpdateZone(ctx context.Context, z *Zone) error {
	query := `
		UPDATE authz.zones
		SET name = $2, description = $3, color = $4, regions = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, z.ID, z.Name, z.Description, z.Color, z.Regions, z.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update zone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("zone", z.ID.String())
	}
	return nil
}

func (r *Repository) DeleteZone(ctx context.Context, id types.ID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM authz.zones WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete zone: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) GetAssignment(ctx context.Context, userID types.ID) (*Assignment, error) {
	query := `
		SELECT user_id, zone_ids, assigned_by, assigned_at
		FROM authz.zone_assignments WHERE user_id = $1`

	var a Assignment
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&a.UserID, &a.ZoneIDs, &a.AssignedBy, &a.AssignedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("zone assignment", userID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

func (r *Repository) UpsertAssignment(ctx context.Context, a *Assignment) error {
	query := `
		INSERT INTO authz.zone_assignments (user_id, zone_ids, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET zone_ids = EXCLUDED.zone_ids, assigned_by = EXCLUDED.assigned_by, assigned_at = EXCLUDED.assigned_at`

	_, err := r.db.Pool.Exec(ctx, query, a.UserID, a.ZoneIDs, a.AssignedBy, a.AssignedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert assignment: %w", err)
	}
	return nil
}

func (r *Repository) ListAssignments(ctx context.Context) ([]Assignment, error) {
	query := `
		SELECT user_id, zone_ids, assigned_by, assigned_at
		FROM authz.zone_assignments ORDER BY user_id`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.UserID, &a.ZoneIDs, &a.AssignedBy, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (r *Repository) RemoveZoneFromAssignments(ctx context.Context, zoneID types.ID) ([]types.ID, error) {
	query := `
		UPDATE authz.zone_assignments
		SET zone_ids = array_remove(zone_ids, $1::uuid)
		WHERE $1::uuid = ANY(zone_ids)
		RETURNING user_id`

	rows, err := r.db.Pool.Query(ctx, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to cascade zone removal: %w", err)
	}
	defer rows.Close()

	var affected []types.ID
	for rows.Next() {
		var userID types.ID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan affected user: %w", err)
		}
		affected = append(affected, userID)
	}
	return affected, rows.Err()
}
