package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/settings"
	"github.com/wolfeidau/orgscope/internal/store"
)

// Store implements store.Store using in-memory storage.
// This implementation is for testing only - data is lost on restart.
//
// Transactions copy the whole data set, run against the copy and swap it in on
// success, so a failed unit of work leaves nothing behind. Transactions are
// serialized. Repositories obtained from the Store itself must not be used
// inside WithinTx, use the ones passed to the callback.
type Store struct {
	mu   sync.RWMutex
	data *state
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{data: newState()}
}

func (s *Store) Organizations() store.OrganizationStore {
	return &OrganizationStore{db: s}
}

func (s *Store) Memberships() store.MembershipStore {
	return &MembershipStore{db: s}
}

func (s *Store) Invitations() store.InvitationStore {
	return &InvitationStore{db: s}
}

func (s *Store) Users() store.UserStore {
	return &UserStore{db: s}
}

// WithinTx runs fn against a private copy of the data and commits it if fn
// returns nil.
func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(ctx, &txRepositories{data: working}); err != nil {
		return err
	}
	s.data = working

	return nil
}

func (s *Store) read(fn func(d *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (s *Store) write(fn func(d *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// access is implemented by the Store (locking) and by an open transaction
// (already holding the lock).
type access interface {
	read(fn func(d *state) error) error
	write(fn func(d *state) error) error
}

type txRepositories struct {
	data *state
}

func (t *txRepositories) read(fn func(d *state) error) error  { return fn(t.data) }
func (t *txRepositories) write(fn func(d *state) error) error { return fn(t.data) }

func (t *txRepositories) Organizations() store.OrganizationStore {
	return &OrganizationStore{db: t}
}

func (t *txRepositories) Memberships() store.MembershipStore {
	return &MembershipStore{db: t}
}

func (t *txRepositories) Invitations() store.InvitationStore {
	return &InvitationStore{db: t}
}

func (t *txRepositories) Users() store.UserStore {
	return &UserStore{db: t}
}

type memberKey struct {
	orgID  int64
	userID int64
}

type state struct {
	nextOrgID    int64
	nextMemberID int64
	nextInviteID int64
	nextUserID   int64

	organizations map[int64]*models.Organization // id -> Organization
	memberships   map[memberKey]*models.Membership
	invitations   map[int64]*models.Invitation // id -> Invitation
	users         map[int64]*models.User       // id -> User
}

func newState() *state {
	return &state{
		organizations: make(map[int64]*models.Organization),
		memberships:   make(map[memberKey]*models.Membership),
		invitations:   make(map[int64]*models.Invitation),
		users:         make(map[int64]*models.User),
	}
}

func (d *state) clone() *state {
	c := &state{
		nextOrgID:     d.nextOrgID,
		nextMemberID:  d.nextMemberID,
		nextInviteID:  d.nextInviteID,
		nextUserID:    d.nextUserID,
		organizations: make(map[int64]*models.Organization, len(d.organizations)),
		memberships:   make(map[memberKey]*models.Membership, len(d.memberships)),
		invitations:   make(map[int64]*models.Invitation, len(d.invitations)),
		users:         make(map[int64]*models.User, len(d.users)),
	}
	for k, v := range d.organizations {
		c.organizations[k] = cloneOrganization(v)
	}
	for k, v := range d.memberships {
		m := *v
		c.memberships[k] = &m
	}
	for k, v := range d.invitations {
		c.invitations[k] = cloneInvitation(v)
	}
	for k, v := range d.users {
		c.users[k] = cloneUser(v)
	}
	return c
}

func cloneOrganization(o *models.Organization) *models.Organization {
	c := *o
	c.Description = clonePtr(o.Description)
	c.DeletedAt = clonePtr(o.DeletedAt)
	c.Settings = settings.Clone(o.Settings)
	return &c
}

func cloneInvitation(i *models.Invitation) *models.Invitation {
	c := *i
	c.InvitedByUserID = clonePtr(i.InvitedByUserID)
	c.UserID = clonePtr(i.UserID)
	c.AcceptedAt = clonePtr(i.AcceptedAt)
	c.DeclinedAt = clonePtr(i.DeclinedAt)
	c.DeletedAt = clonePtr(i.DeletedAt)
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.DefaultOrganizationID = clonePtr(u.DefaultOrganizationID)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
