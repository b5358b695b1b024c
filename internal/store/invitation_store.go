package store

import (
	"context"
	"time"

	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/tenant"
)

var (
	ErrInvitationNotFound       = notFound("invitation")
	ErrInvitationTokenConflict  = conflict("invitation token already exists")
	ErrActiveInvitationConflict = conflict("a pending invitation already exists")
)

// InvitationFilter narrows List results.
type InvitationFilter struct {
	PendingOnly bool      // neither accepted nor declined
	ValidAt     time.Time // when set with PendingOnly, also exclude invitations expired at this instant
	Email       string
}

// InvitationStore manages organization invitations. Soft-deleted invitations
// are invisible to every method.
type InvitationStore interface {
	// Create inserts an invitation.
	// Returns ErrActiveInvitationConflict when another unresolved invitation exists
	// for the same organization and email, ErrInvitationTokenConflict on a token clash.
	Create(ctx context.Context, inv *models.Invitation) error

	Get(ctx context.Context, id int64) (*models.Invitation, error)

	GetByToken(ctx context.Context, token string) (*models.Invitation, error)

	// Update persists token, role, resolution timestamps, user and expiry.
	Update(ctx context.Context, inv *models.Invitation) error

	// FindPending returns the unresolved invitation for (orgID, email), expired or not.
	FindPending(ctx context.Context, orgID int64, email string) (*models.Invitation, error)

	SoftDelete(ctx context.Context, id int64, at time.Time) error

	// List returns invitations visible through scope.
	List(ctx context.Context, scope tenant.Scope, filter InvitationFilter) ([]*models.Invitation, error)
}
