package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/tenant"
)

const invitationColumns = `id, uuid, organization_id, invited_by_user_id, user_id, email, token, role,
	accepted_at, declined_at, expires_at, created_at, updated_at, deleted_at`

const pendingInvitation = `accepted_at IS NULL AND declined_at IS NULL`

// InvitationStore implements store.InvitationStore using PostgreSQL.
type InvitationStore struct {
	db   querier
	lock bool
}

func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO organization_invitations (
			uuid, organization_id, invited_by_user_id, user_id, email, token, role,
			accepted_at, declined_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		inv.UUID,
		inv.OrganizationID,
		inv.InvitedByUserID,
		inv.UserID,
		inv.Email,
		inv.Token,
		string(inv.Role),
		inv.AcceptedAt,
		inv.DeclinedAt,
		inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", mapPostgresError(err))
	}

	log.Debug().
		Int64("org_id", inv.OrganizationID).
		Int64("invitation_id", inv.ID).
		Msg("Created invitation")

	return nil
}

func (s *InvitationStore) Get(ctx context.Context, id int64) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM organization_invitations
		WHERE id = $1 AND deleted_at IS NULL` + lockClause(s.lock)
	return s.getOne(ctx, query, id)
}

func (s *InvitationStore) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM organization_invitations
		WHERE token = $1 AND deleted_at IS NULL` + lockClause(s.lock)
	return s.getOne(ctx, query, token)
}

func (s *InvitationStore) FindPending(ctx context.Context, orgID int64, email string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM organization_invitations
		WHERE organization_id = $1 AND email = $2 AND ` + pendingInvitation + ` AND deleted_at IS NULL` + lockClause(s.lock)
	return s.getOne(ctx, query, orgID, email)
}

func (s *InvitationStore) getOne(ctx context.Context, query string, args ...any) (*models.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", mapPostgresError(err))
	}
	return inv, nil
}

func (s *InvitationStore) Update(ctx context.Context, inv *models.Invitation) error {
	query := `
		UPDATE organization_invitations SET
			user_id = $2,
			token = $3,
			role = $4,
			accepted_at = $5,
			declined_at = $6,
			expires_at = $7,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		inv.ID,
		inv.UserID,
		inv.Token,
		string(inv.Role),
		inv.AcceptedAt,
		inv.DeclinedAt,
		inv.ExpiresAt,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrInvitationNotFound
		}
		return fmt.Errorf("failed to update invitation: %w", mapPostgresError(err))
	}
	return nil
}

func (s *InvitationStore) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.Exec(ctx, `
		UPDATE organization_invitations SET deleted_at = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrInvitationNotFound
	}
	return nil
}

// List returns invitations visible through scope, ordered by ID.
func (s *InvitationStore) List(ctx context.Context, scope tenant.Scope, filter store.InvitationFilter) ([]*models.Invitation, error) {
	predicate, args := scope.Where("organization_id", 1)
	conditions := []string{"deleted_at IS NULL", predicate}

	if filter.PendingOnly {
		conditions = append(conditions, pendingInvitation)
		if !filter.ValidAt.IsZero() {
			args = append(args, filter.ValidAt)
			conditions = append(conditions, fmt.Sprintf("expires_at > $%d", len(args)))
		}
	}
	if filter.Email != "" {
		args = append(args, filter.Email)
		conditions = append(conditions, fmt.Sprintf("email = $%d", len(args)))
	}

	query := `SELECT ` + invitationColumns + ` FROM organization_invitations
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var invitations []*models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invitations: %w", mapPostgresError(err))
	}
	return invitations, nil
}

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	var (
		inv  models.Invitation
		role string
	)
	err := row.Scan(
		&inv.ID,
		&inv.UUID,
		&inv.OrganizationID,
		&inv.InvitedByUserID,
		&inv.UserID,
		&inv.Email,
		&inv.Token,
		&role,
		&inv.AcceptedAt,
		&inv.DeclinedAt,
		&inv.ExpiresAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
		&inv.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Role = models.Role(role)
	return &inv, nil
}
