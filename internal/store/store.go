package store

import (
	"context"
	"errors"
	"fmt"
)

// Base sentinel errors. Specific errors wrap one of these so callers can
// match either the specific or the general condition.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrStorageUnavailable is returned when the backing store cannot be
	// reached or timed out. It is the only store error worth retrying.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Repositories groups the entity stores. Inside a transaction every store
// shares the same transaction.
type Repositories interface {
	Organizations() OrganizationStore
	Memberships() MembershipStore
	Invitations() InvitationStore
	Users() UserStore
}

// TxFunc is a unit of work run against transactional repositories.
type TxFunc func(ctx context.Context, tx Repositories) error

// Store is the durable store used by the organization services.
type Store interface {
	Repositories

	// WithinTx runs fn in a single transaction. If fn returns an error nothing
	// it wrote is visible to other callers. Reads of organizations and
	// invitations inside fn lock the returned rows until commit.
	WithinTx(ctx context.Context, fn TxFunc) error
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func conflict(what string) error {
	return fmt.Errorf("%s: %w", what, ErrConflict)
}

// ErrSessionRequired is returned when a session overlay write has no session to write to.
var ErrSessionRequired = errors.New("session required")
