package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
)

const organizationColumns = `id, uuid, owner_id, name, slug, description, settings, created_at, updated_at, deleted_at`

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
type OrganizationStore struct {
	db   querier
	lock bool
}

// Create creates a new organization in the database.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (
			uuid, owner_id, name, slug, description, settings, deleted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		org.UUID,
		org.OwnerID,
		org.Name,
		org.Slug,
		org.Description,
		org.AllSettings(),
		org.DeletedAt,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Int64("org_id", org.ID).
		Str("slug", org.Slug).
		Msg("Created organization")

	return nil
}

// Get retrieves an active organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID int64) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1 AND deleted_at IS NULL` + lockClause(s.lock)
	return s.getOne(ctx, query, orgID)
}

func (s *OrganizationStore) GetWithTrashed(ctx context.Context, orgID int64) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1` + lockClause(s.lock)
	return s.getOne(ctx, query, orgID)
}

func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE slug = $1 AND deleted_at IS NULL` + lockClause(s.lock)
	return s.getOne(ctx, query, slug)
}

func (s *OrganizationStore) getOne(ctx context.Context, query string, arg any) (*models.Organization, error) {
	org, err := scanOrganization(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", mapPostgresError(err))
	}
	return org, nil
}

// Update persists every mutable column, including the soft delete marker.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations SET
			owner_id = $2,
			name = $3,
			slug = $4,
			description = $5,
			settings = $6,
			deleted_at = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		org.ID,
		org.OwnerID,
		org.Name,
		org.Slug,
		org.Description,
		org.AllSettings(),
		org.DeletedAt,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrOrganizationNotFound
		}
		return fmt.Errorf("failed to update organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Int64("org_id", org.ID).
		Msg("Updated organization")

	return nil
}

// Delete permanently removes an organization. Memberships and invitations
// cascade and users' defaults are cleared via foreign keys.
func (s *OrganizationStore) Delete(ctx context.Context, orgID int64) error {
	result, err := s.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Info().
		Int64("org_id", orgID).
		Msg("Deleted organization (and cascade-deleted memberships and invitations)")

	return nil
}

// ListByOwner returns all active organizations owned by a user, ordered by ID.
func (s *OrganizationStore) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Organization, error) {
	query := `
		SELECT ` + organizationColumns + `
		FROM organizations
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", mapPostgresError(err))
	}

	return orgs, nil
}

func (s *OrganizationStore) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM organizations WHERE owner_id = $1 AND deleted_at IS NULL`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count organizations: %w", mapPostgresError(err))
	}
	return count, nil
}

func (s *OrganizationStore) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var taken bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM organizations
			WHERE name = $1 AND id <> $2 AND deleted_at IS NULL
		)
	`, name, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check organization name: %w", mapPostgresError(err))
	}
	return taken, nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.ID,
		&org.UUID,
		&org.OwnerID,
		&org.Name,
		&org.Slug,
		&org.Description,
		&org.Settings,
		&org.CreatedAt,
		&org.UpdatedAt,
		&org.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}
