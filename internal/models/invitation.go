package models

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus is derived from the resolution timestamps and the expiry.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation is an offer for an email address to join an organization.
// At most one of AcceptedAt and DeclinedAt is ever set.
type Invitation struct {
	ID              int64
	UUID            uuid.UUID
	OrganizationID  int64
	InvitedByUserID *int64
	UserID          *int64 // set once accepted
	Email           string // always lowercase
	Token           string // secret, never logged or published
	Role            Role

	AcceptedAt *time.Time
	DeclinedAt *time.Time
	ExpiresAt  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsPending returns true if the invitation has been neither accepted nor declined.
// A pending invitation may still be expired.
func (i *Invitation) IsPending() bool {
	return i.AcceptedAt == nil && i.DeclinedAt == nil
}

func (i *Invitation) IsAccepted() bool {
	return i.AcceptedAt != nil
}

func (i *Invitation) IsDeclined() bool {
	return i.DeclinedAt != nil
}

// IsExpiredAt reports whether the invitation has expired at the given instant.
func (i *Invitation) IsExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsValidAt reports whether the invitation can still be accepted at now.
func (i *Invitation) IsValidAt(now time.Time) bool {
	return i.IsPending() && !i.IsExpiredAt(now)
}

// StatusAt returns the invitation status as observed at now.
func (i *Invitation) StatusAt(now time.Time) InvitationStatus {
	switch {
	case i.IsAccepted():
		return InvitationAccepted
	case i.IsDeclined():
		return InvitationDeclined
	case i.IsExpiredAt(now):
		return InvitationExpired
	}
	return InvitationPending
}

// TenantID returns the organization the invitation belongs to.
func (i *Invitation) TenantID() int64 {
	return i.OrganizationID
}

// SetTenantID assigns the owning organization.
func (i *Invitation) SetTenantID(orgID int64) {
	i.OrganizationID = orgID
}
