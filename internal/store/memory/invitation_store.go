package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/tenant"
)

// InvitationStore implements store.InvitationStore using in-memory storage.
type InvitationStore struct {
	db access
}

// Create inserts an invitation, enforcing the unique token and the single
// unresolved invitation per (organization, email).
func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	return s.db.write(func(d *state) error {
		if _, ok := d.organizations[inv.OrganizationID]; !ok {
			return store.ErrOrganizationNotFound
		}
		if err := d.checkInvitationUnique(inv); err != nil {
			return err
		}

		d.nextInviteID++
		now := time.Now()
		inv.ID = d.nextInviteID
		inv.CreatedAt = now
		inv.UpdatedAt = now

		d.invitations[inv.ID] = cloneInvitation(inv)
		return nil
	})
}

func (s *InvitationStore) Get(ctx context.Context, id int64) (*models.Invitation, error) {
	var result *models.Invitation
	err := s.db.read(func(d *state) error {
		inv, ok := d.invitations[id]
		if !ok || inv.DeletedAt != nil {
			return store.ErrInvitationNotFound
		}
		result = cloneInvitation(inv)
		return nil
	})
	return result, err
}

func (s *InvitationStore) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var result *models.Invitation
	err := s.db.read(func(d *state) error {
		for _, inv := range d.invitations {
			if inv.Token == token && inv.DeletedAt == nil {
				result = cloneInvitation(inv)
				return nil
			}
		}
		return store.ErrInvitationNotFound
	})
	return result, err
}

func (s *InvitationStore) Update(ctx context.Context, inv *models.Invitation) error {
	return s.db.write(func(d *state) error {
		existing, ok := d.invitations[inv.ID]
		if !ok || existing.DeletedAt != nil {
			return store.ErrInvitationNotFound
		}
		if err := d.checkInvitationUnique(inv); err != nil {
			return err
		}

		inv.CreatedAt = existing.CreatedAt
		inv.UpdatedAt = time.Now()
		d.invitations[inv.ID] = cloneInvitation(inv)
		return nil
	})
}

func (s *InvitationStore) FindPending(ctx context.Context, orgID int64, email string) (*models.Invitation, error) {
	var result *models.Invitation
	err := s.db.read(func(d *state) error {
		for _, inv := range d.invitations {
			if inv.OrganizationID == orgID && inv.Email == email && inv.IsPending() && inv.DeletedAt == nil {
				result = cloneInvitation(inv)
				return nil
			}
		}
		return store.ErrInvitationNotFound
	})
	return result, err
}

func (s *InvitationStore) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	return s.db.write(func(d *state) error {
		inv, ok := d.invitations[id]
		if !ok || inv.DeletedAt != nil {
			return store.ErrInvitationNotFound
		}
		inv.DeletedAt = &at
		inv.UpdatedAt = time.Now()
		return nil
	})
}

// List returns invitations visible through scope, ordered by ID.
func (s *InvitationStore) List(ctx context.Context, scope tenant.Scope, filter store.InvitationFilter) ([]*models.Invitation, error) {
	var result []*models.Invitation
	err := s.db.read(func(d *state) error {
		for _, inv := range d.invitations {
			if inv.DeletedAt != nil || !scope.Includes(inv.OrganizationID) {
				continue
			}
			if filter.PendingOnly {
				if !inv.IsPending() {
					continue
				}
				if !filter.ValidAt.IsZero() && inv.IsExpiredAt(filter.ValidAt) {
					continue
				}
			}
			if filter.Email != "" && inv.Email != filter.Email {
				continue
			}
			result = append(result, cloneInvitation(inv))
		}
		return nil
	})
	slices.SortFunc(result, func(a, b *models.Invitation) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, err
}

func (d *state) checkInvitationUnique(inv *models.Invitation) error {
	for _, other := range d.invitations {
		if other.ID == inv.ID {
			continue
		}
		if other.Token == inv.Token {
			return store.ErrInvitationTokenConflict
		}
		if inv.IsPending() && inv.DeletedAt == nil &&
			other.IsPending() && other.DeletedAt == nil &&
			other.OrganizationID == inv.OrganizationID && other.Email == inv.Email {
			return store.ErrActiveInvitationConflict
		}
	}
	return nil
}
