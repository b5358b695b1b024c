// Package events defines the domain events emitted by the organization
// services and the dispatchers that deliver them.
//
// Events are dispatched only after the transaction that produced them has
// committed. Delivery is best effort and never blocks the action that
// emitted the event.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgscope/internal/models"
)

// Type identifies a domain event.
type Type string

const (
	OrganizationCreated  Type = "organization.created"
	OrganizationUpdated  Type = "organization.updated"
	OrganizationDeleted  Type = "organization.deleted"
	OwnershipTransferred Type = "organization.ownership_transferred"
	MemberAdded          Type = "member.added"
	MemberRemoved        Type = "member.removed"
	MemberRoleChanged    Type = "member.role_changed"
	InvitationSent       Type = "invitation.sent"
	InvitationAccepted   Type = "invitation.accepted"
	InvitationDeclined   Type = "invitation.declined"
)

// Event is a single domain event. Only the fields relevant to Type are set.
// Invitation tokens are never carried.
type Event struct {
	ID               uuid.UUID `json:"id"`
	Type             Type      `json:"type"`
	OrganizationID   int64     `json:"organization_id"`
	OrganizationName string    `json:"organization_name,omitempty"`
	ActorID          int64     `json:"actor_id,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`

	// membership
	UserID  int64       `json:"user_id,omitempty"`
	Role    models.Role `json:"role,omitempty"`
	OldRole models.Role `json:"old_role,omitempty"`
	NewRole models.Role `json:"new_role,omitempty"`

	// ownership
	PreviousOwnerID int64 `json:"previous_owner_id,omitempty"`
	NewOwnerID      int64 `json:"new_owner_id,omitempty"`

	// invitations
	InvitationID int64      `json:"invitation_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	// OrganizationUpdated: field name -> new value
	Changes map[string]any `json:"changes,omitempty"`
}

// Dispatcher delivers events to collaborators. Dispatch must not block on
// delivery and has no error result; failures are the dispatcher's concern.
type Dispatcher interface {
	Dispatch(ctx context.Context, evts ...Event)
}

// Stamp fills in ID and OccurredAt when they are unset.
func Stamp(e *Event, now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.Must(uuid.NewV7())
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now.UTC()
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Dispatch(ctx context.Context, evts ...Event) {}

// Fanout dispatches every event to each dispatcher in order.
type Fanout []Dispatcher

func (f Fanout) Dispatch(ctx context.Context, evts ...Event) {
	for _, d := range f {
		d.Dispatch(ctx, evts...)
	}
}
