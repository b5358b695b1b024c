package store

import (
	"context"

	"github.com/wolfeidau/orgscope/internal/models"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound      = notFound("organization")
	ErrOrganizationAlreadyExists = conflict("organization already exists")
	ErrSlugConflict              = conflict("organization slug already taken")
	ErrNameConflict              = conflict("organization name already taken")
)

// OrganizationStore defines the interface for organization storage operations.
type OrganizationStore interface {
	// Create inserts a new organization, assigning ID and timestamps.
	// Returns ErrSlugConflict or ErrNameConflict when a uniqueness constraint fails.
	Create(ctx context.Context, org *models.Organization) error

	// Get retrieves an active (not soft-deleted) organization by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist or is soft-deleted.
	Get(ctx context.Context, orgID int64) (*models.Organization, error)

	// GetWithTrashed retrieves an organization by ID including soft-deleted ones.
	GetWithTrashed(ctx context.Context, orgID int64) (*models.Organization, error)

	// GetBySlug retrieves an active organization by slug.
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)

	// Update persists name, slug, description, settings, owner and deleted_at.
	Update(ctx context.Context, org *models.Organization) error

	// Delete permanently removes an organization.
	// Memberships and invitations are removed with it and users whose default
	// organization it was have their default cleared.
	Delete(ctx context.Context, orgID int64) error

	// ListByOwner returns all active organizations owned by a user.
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Organization, error)

	// CountByOwner returns the number of active organizations owned by a user.
	CountByOwner(ctx context.Context, ownerID int64) (int, error)

	// NameTaken reports whether an active organization other than excludeID uses name.
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
}
