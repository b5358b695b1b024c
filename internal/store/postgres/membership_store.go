package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
)

const membershipColumns = `m.id, m.organization_id, m.user_id, m.role, m.is_active, m.created_at, m.updated_at`

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	db querier
}

func (s *MembershipStore) Add(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO organization_members (organization_id, user_id, role, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query, m.OrganizationID, m.UserID, string(m.Role), m.IsActive).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", mapPostgresError(err))
	}

	log.Debug().
		Int64("org_id", m.OrganizationID).
		Int64("user_id", m.UserID).
		Str("role", m.Role.String()).
		Msg("Added membership")

	return nil
}

func (s *MembershipStore) Get(ctx context.Context, orgID, userID int64) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_members m
		WHERE m.organization_id = $1 AND m.user_id = $2
	`

	m, err := scanMembership(s.db.QueryRow(ctx, query, orgID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", mapPostgresError(err))
	}
	return m, nil
}

func (s *MembershipStore) Update(ctx context.Context, m *models.Membership) error {
	query := `
		UPDATE organization_members SET
			role = $3,
			is_active = $4,
			updated_at = NOW()
		WHERE organization_id = $1 AND user_id = $2
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query, m.OrganizationID, m.UserID, string(m.Role), m.IsActive).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrMembershipNotFound
		}
		return fmt.Errorf("failed to update membership: %w", mapPostgresError(err))
	}
	return nil
}

func (s *MembershipStore) Remove(ctx context.Context, orgID, userID int64) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	log.Debug().
		Int64("org_id", orgID).
		Int64("user_id", userID).
		Msg("Removed membership")

	return nil
}

func (s *MembershipStore) ListByOrganization(ctx context.Context, orgID int64, filter store.MembershipFilter) ([]*models.Membership, error) {
	conditions := []string{"m.organization_id = $1"}
	args := []any{orgID}

	if filter.ActiveOnly {
		conditions = append(conditions, "m.is_active")
	}
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conditions = append(conditions, fmt.Sprintf("m.role = $%d", len(args)))
	}

	query := `
		SELECT ` + membershipColumns + `
		FROM organization_members m
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY m.id
	`
	return s.list(ctx, query, args...)
}

func (s *MembershipStore) ListByUser(ctx context.Context, userID int64) ([]*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_members m
		JOIN organizations o ON o.id = m.organization_id AND o.deleted_at IS NULL
		WHERE m.user_id = $1
		ORDER BY m.id
	`
	return s.list(ctx, query, userID)
}

func (s *MembershipStore) list(ctx context.Context, query string, args ...any) ([]*models.Membership, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", mapPostgresError(err))
	}
	return memberships, nil
}

func (s *MembershipStore) CountActiveExcluding(ctx context.Context, orgID, userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM organization_members
		WHERE organization_id = $1 AND user_id <> $2 AND is_active
	`, orgID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", mapPostgresError(err))
	}
	return count, nil
}

func (s *MembershipStore) HasActiveMemberWithEmail(ctx context.Context, orgID int64, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM organization_members m
			JOIN users u ON u.id = m.user_id
			WHERE m.organization_id = $1 AND m.is_active AND lower(u.email) = lower($2)
		)
	`, orgID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check member email: %w", mapPostgresError(err))
	}
	return exists, nil
}

func scanMembership(row pgx.Row) (*models.Membership, error) {
	var (
		m    models.Membership
		role string
	)
	err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return &m, nil
}
