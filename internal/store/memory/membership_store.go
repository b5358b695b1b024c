package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
)

// MembershipStore implements store.MembershipStore using in-memory storage.
type MembershipStore struct {
	db access
}

// Add inserts a membership, enforcing the unique (organization, user) pair.
func (s *MembershipStore) Add(ctx context.Context, m *models.Membership) error {
	return s.db.write(func(d *state) error {
		if _, ok := d.organizations[m.OrganizationID]; !ok {
			return store.ErrOrganizationNotFound
		}
		if _, ok := d.users[m.UserID]; !ok {
			return store.ErrUserNotFound
		}
		key := memberKey{orgID: m.OrganizationID, userID: m.UserID}
		if _, exists := d.memberships[key]; exists {
			return store.ErrMembershipAlreadyExists
		}

		d.nextMemberID++
		now := time.Now()
		m.ID = d.nextMemberID
		m.CreatedAt = now
		m.UpdatedAt = now

		clone := *m
		d.memberships[key] = &clone
		return nil
	})
}

func (s *MembershipStore) Get(ctx context.Context, orgID, userID int64) (*models.Membership, error) {
	var result *models.Membership
	err := s.db.read(func(d *state) error {
		m, ok := d.memberships[memberKey{orgID: orgID, userID: userID}]
		if !ok {
			return store.ErrMembershipNotFound
		}
		clone := *m
		result = &clone
		return nil
	})
	return result, err
}

// Update persists role and active flag.
func (s *MembershipStore) Update(ctx context.Context, m *models.Membership) error {
	return s.db.write(func(d *state) error {
		existing, ok := d.memberships[memberKey{orgID: m.OrganizationID, userID: m.UserID}]
		if !ok {
			return store.ErrMembershipNotFound
		}
		existing.Role = m.Role
		existing.IsActive = m.IsActive
		existing.UpdatedAt = time.Now()

		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		m.UpdatedAt = existing.UpdatedAt
		return nil
	})
}

// Remove hard-deletes the membership.
func (s *MembershipStore) Remove(ctx context.Context, orgID, userID int64) error {
	return s.db.write(func(d *state) error {
		key := memberKey{orgID: orgID, userID: userID}
		if _, ok := d.memberships[key]; !ok {
			return store.ErrMembershipNotFound
		}
		delete(d.memberships, key)
		return nil
	})
}

func (s *MembershipStore) ListByOrganization(ctx context.Context, orgID int64, filter store.MembershipFilter) ([]*models.Membership, error) {
	var result []*models.Membership
	err := s.db.read(func(d *state) error {
		for k, m := range d.memberships {
			if k.orgID != orgID {
				continue
			}
			if filter.ActiveOnly && !m.IsActive {
				continue
			}
			if filter.Role != "" && m.Role != filter.Role {
				continue
			}
			clone := *m
			result = append(result, &clone)
		}
		return nil
	})
	sortMemberships(result)
	return result, err
}

func (s *MembershipStore) ListByUser(ctx context.Context, userID int64) ([]*models.Membership, error) {
	var result []*models.Membership
	err := s.db.read(func(d *state) error {
		for k, m := range d.memberships {
			if k.userID != userID {
				continue
			}
			if org, ok := d.organizations[k.orgID]; !ok || !org.IsActive() {
				continue
			}
			clone := *m
			result = append(result, &clone)
		}
		return nil
	})
	sortMemberships(result)
	return result, err
}

func (s *MembershipStore) CountActiveExcluding(ctx context.Context, orgID, userID int64) (int, error) {
	count := 0
	err := s.db.read(func(d *state) error {
		for k, m := range d.memberships {
			if k.orgID == orgID && k.userID != userID && m.IsActive {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (s *MembershipStore) HasActiveMemberWithEmail(ctx context.Context, orgID int64, email string) (bool, error) {
	found := false
	err := s.db.read(func(d *state) error {
		for k, m := range d.memberships {
			if k.orgID != orgID || !m.IsActive {
				continue
			}
			if u, ok := d.users[k.userID]; ok && strings.EqualFold(u.Email, email) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func sortMemberships(ms []*models.Membership) {
	slices.SortFunc(ms, func(a, b *models.Membership) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
