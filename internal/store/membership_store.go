package store

import (
	"context"

	"github.com/wolfeidau/orgscope/internal/models"
)

var (
	ErrMembershipNotFound      = notFound("membership")
	ErrMembershipAlreadyExists = conflict("membership already exists")
)

// MembershipFilter narrows ListByOrganization results.
type MembershipFilter struct {
	ActiveOnly bool        // only memberships with the active flag set
	Role       models.Role // filter by role (empty = all)
}

// MembershipStore manages organization memberships. Every query names the
// organization explicitly.
type MembershipStore interface {
	// Add inserts a membership.
	// Returns ErrMembershipAlreadyExists if the (organization, user) pair exists.
	Add(ctx context.Context, m *models.Membership) error

	// Get retrieves the membership for (orgID, userID).
	Get(ctx context.Context, orgID, userID int64) (*models.Membership, error)

	// Update persists role and active flag.
	Update(ctx context.Context, m *models.Membership) error

	// Remove hard-deletes the membership row.
	Remove(ctx context.Context, orgID, userID int64) error

	ListByOrganization(ctx context.Context, orgID int64, filter MembershipFilter) ([]*models.Membership, error)

	// ListByUser returns the user's memberships in active organizations.
	ListByUser(ctx context.Context, userID int64) ([]*models.Membership, error)

	// CountActiveExcluding counts active members of orgID other than userID.
	CountActiveExcluding(ctx context.Context, orgID, userID int64) (int, error)

	// HasActiveMemberWithEmail reports whether an active member of orgID has
	// the given email (compared case-insensitively).
	HasActiveMemberWithEmail(ctx context.Context, orgID int64, email string) (bool, error)
}
