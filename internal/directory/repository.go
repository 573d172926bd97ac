// Package directory provides user, team and role lookups backing the state
// machine's role resolution. Memberships live in team_users rows carrying
// the role a user holds within a team.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"caseflow/casework-backend/internal/statemachine"
)

// ErrNotFound is returned when a user or team does not exist.
var ErrNotFound = errors.New("directory: not found")

// Repository implements statemachine.Directory plus the credential lookup
// used by the auth service.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindUser(ctx context.Context, id uuid.UUID) (*statemachine.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		"SELECT id, email, full_name, password_hash, created_at FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &statemachine.User{ID: row.ID, Email: row.Email, FullName: row.FullName}, nil
}

func (r *Repository) FindTeam(ctx context.Context, id uuid.UUID) (*statemachine.Team, error) {
	var row teamRow
	err := r.db.GetContext(ctx, &row,
		"SELECT id, name, role, created_at FROM teams WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &statemachine.Team{ID: row.ID, Name: row.Name, Role: row.Role}, nil
}

func (r *Repository) RolesOfUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var roles []string
	err := r.db.SelectContext(ctx, &roles,
		"SELECT DISTINCT role FROM team_users WHERE user_id = $1 ORDER BY role", userID)
	return roles, err
}

func (r *Repository) RolesOfUserForTeam(ctx context.Context, userID, teamID uuid.UUID) ([]string, error) {
	var roles []string
	err := r.db.SelectContext(ctx, &roles,
		"SELECT DISTINCT role FROM team_users WHERE user_id = $1 AND team_id = $2 ORDER BY role",
		userID, teamID)
	return roles, err
}

// FindCredentials looks a user up by email for password verification.
func (r *Repository) FindCredentials(ctx context.Context, email string) (*Credentials, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		"SELECT id, email, full_name, password_hash, created_at FROM users WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &Credentials{ID: row.ID, Email: row.Email, PasswordHash: row.PasswordHash}, nil
}
