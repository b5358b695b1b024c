package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
)

const userColumns = `id, email, name, default_organization_id, created_at, updated_at`

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	db   querier
	lock bool
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (email, name, default_organization_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, user.Email, user.Name, user.DefaultOrganizationID).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapPostgresError(err))
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, userID int64) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`+lockClause(s.lock), userID)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`+lockClause(s.lock), email)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.DefaultOrganizationID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", mapPostgresError(err))
	}
	return &u, nil
}

// SetDefaultOrganization writes the durable default organization.
func (s *UserStore) SetDefaultOrganization(ctx context.Context, userID int64, orgID *int64) error {
	result, err := s.db.Exec(ctx,
		`UPDATE users SET default_organization_id = $2, updated_at = NOW() WHERE id = $1`,
		userID, orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to set default organization: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}
	return nil
}
