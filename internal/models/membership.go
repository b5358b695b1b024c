package models

import "time"

// Membership links a user to an organization with a role.
// There is at most one membership per (organization, user) pair.
type Membership struct {
	ID             int64
	OrganizationID int64
	UserID         int64
	Role           Role
	IsActive       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
