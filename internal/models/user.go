package models

import "time"

// Identity is the minimal view of an authenticated user that the
// organization services need.
type Identity interface {
	IdentityID() int64
	IdentityEmail() string
	DisplayName() string
}

// User represents a person who can own and belong to organizations.
type User struct {
	ID                    int64
	Email                 string
	Name                  string
	DefaultOrganizationID *int64 // durable "current organization"

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) IdentityID() int64 {
	return u.ID
}

func (u *User) IdentityEmail() string {
	return u.Email
}

func (u *User) DisplayName() string {
	return u.Name
}

// Actor is the identity performing an operation together with the
// session it is acting through. SessionID is empty for non-interactive callers.
type Actor struct {
	Identity
	SessionID string
}

// NewActor builds an actor for the given identity and session.
func NewActor(id Identity, sessionID string) Actor {
	return Actor{Identity: id, SessionID: sessionID}
}

// UserID returns the acting user's id.
func (a Actor) UserID() int64 {
	return a.Identity.IdentityID()
}
