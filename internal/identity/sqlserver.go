package identity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// SQLServerDirectory reads user profiles from the operator's legacy staff
// directory, which lives on a SQL Server instance. Permissions and regions
// are stored there as semicolon-separated lists.
type SQLServerDirectory struct {
	db *sql.DB
}

// NewSQLServerDirectory opens a connection to the staff directory
func NewSQLServerDirectory(ctx context.Context, dsn string) (*SQLServerDirectory, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open staff directory: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping staff directory: %w", err)
	}

	return &SQLServerDirectory{db: db}, nil
}

// Close closes the directory connection
func (d *SQLServerDirectory) Close() error {
	return d.db.Close()
}

// Health checks the directory connection
func (d *SQLServerDirectory) Health(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// GetUser fetches a user profile by id
func (d *SQLServerDirectory) GetUser(ctx context.Context, id types.ID) (User, error) {
	const query = `
		SELECT staff_id, display_name, console_role,
		       COALESCE(extra_permissions, ''), COALESCE(home_regions, '')
		FROM dbo.ConsoleStaff
		WHERE staff_id = @p1`

	var (
		u           User
		permissions string
		regions     string
	)
	err := d.db.QueryRowContext(ctx, query, id.String()).Scan(
		&u.ID, &u.Name, (*string)(&u.Role), &permissions, &regions,
	)
	if err == sql.ErrNoRows {
		return User{}, errors.NotFound("user", id.String())
	}
	if err != nil {
		return User{}, errors.Storage(err, "failed to read staff directory")
	}

	u.ExplicitPermissions = splitList(permissions)
	u.ExplicitRegions = splitList(regions)
	if !u.Role.Valid() {
		u.Role = auth.RoleUser
	}
	return u, nil
}

// Subordinates lists the staff ids reporting to the given manager
func (d *SQLServerDirectory) Subordinates(ctx context.Context, managerID types.ID) ([]types.ID, error) {
	const query = `SELECT staff_id FROM dbo.ConsoleStaff WHERE manager_id = @p1`

	rows, err := d.db.QueryContext(ctx, query, managerID.String())
	if err != nil {
		return nil, errors.Storage(err, "failed to read org hierarchy")
	}
	defer rows.Close()

	var out []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Storage(err, "failed to scan staff id")
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage(err, "failed to read org hierarchy")
	}
	return out, nil
}

// splitList parses the directory's semicolon-separated list columns
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var _ Directory = (*SQLServerDirectory)(nil)
