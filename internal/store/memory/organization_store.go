package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
)

// OrganizationStore implements store.OrganizationStore using in-memory storage.
type OrganizationStore struct {
	db access
}

// Create creates a new organization in memory.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	return s.db.write(func(d *state) error {
		if _, ok := d.users[org.OwnerID]; !ok {
			return store.ErrUserNotFound
		}
		if err := d.checkOrganizationUnique(org); err != nil {
			return err
		}

		d.nextOrgID++
		now := time.Now()
		org.ID = d.nextOrgID
		org.CreatedAt = now
		org.UpdatedAt = now

		// Clone to avoid external modifications
		d.organizations[org.ID] = cloneOrganization(org)
		return nil
	})
}

// Get retrieves an active organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID int64) (*models.Organization, error) {
	var result *models.Organization
	err := s.db.read(func(d *state) error {
		org, ok := d.organizations[orgID]
		if !ok || !org.IsActive() {
			return store.ErrOrganizationNotFound
		}
		result = cloneOrganization(org)
		return nil
	})
	return result, err
}

func (s *OrganizationStore) GetWithTrashed(ctx context.Context, orgID int64) (*models.Organization, error) {
	var result *models.Organization
	err := s.db.read(func(d *state) error {
		org, ok := d.organizations[orgID]
		if !ok {
			return store.ErrOrganizationNotFound
		}
		result = cloneOrganization(org)
		return nil
	})
	return result, err
}

func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var result *models.Organization
	err := s.db.read(func(d *state) error {
		for _, org := range d.organizations {
			if org.Slug == slug && org.IsActive() {
				result = cloneOrganization(org)
				return nil
			}
		}
		return store.ErrOrganizationNotFound
	})
	return result, err
}

// Update updates an existing organization.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	return s.db.write(func(d *state) error {
		existing, ok := d.organizations[org.ID]
		if !ok {
			return store.ErrOrganizationNotFound
		}
		if _, ok := d.users[org.OwnerID]; !ok {
			return store.ErrUserNotFound
		}
		if err := d.checkOrganizationUnique(org); err != nil {
			return err
		}

		org.CreatedAt = existing.CreatedAt
		org.UpdatedAt = time.Now()

		d.organizations[org.ID] = cloneOrganization(org)
		return nil
	})
}

// Delete permanently removes an organization together with its memberships
// and invitations, and clears it as anyone's default.
func (s *OrganizationStore) Delete(ctx context.Context, orgID int64) error {
	return s.db.write(func(d *state) error {
		if _, ok := d.organizations[orgID]; !ok {
			return store.ErrOrganizationNotFound
		}

		delete(d.organizations, orgID)
		for k := range d.memberships {
			if k.orgID == orgID {
				delete(d.memberships, k)
			}
		}
		for id, inv := range d.invitations {
			if inv.OrganizationID == orgID {
				delete(d.invitations, id)
			}
		}
		for _, u := range d.users {
			if u.DefaultOrganizationID != nil && *u.DefaultOrganizationID == orgID {
				u.DefaultOrganizationID = nil
			}
		}
		return nil
	})
}

// ListByOwner returns all active organizations owned by a user, ordered by ID.
func (s *OrganizationStore) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Organization, error) {
	var result []*models.Organization
	err := s.db.read(func(d *state) error {
		for _, org := range d.organizations {
			if org.OwnerID == ownerID && org.IsActive() {
				result = append(result, cloneOrganization(org))
			}
		}
		return nil
	})
	slices.SortFunc(result, func(a, b *models.Organization) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, err
}

func (s *OrganizationStore) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	count := 0
	err := s.db.read(func(d *state) error {
		for _, org := range d.organizations {
			if org.OwnerID == ownerID && org.IsActive() {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (s *OrganizationStore) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	taken := false
	err := s.db.read(func(d *state) error {
		taken = d.activeNameTaken(name, excludeID)
		return nil
	})
	return taken, err
}

func (d *state) activeNameTaken(name string, excludeID int64) bool {
	for _, org := range d.organizations {
		if org.ID != excludeID && org.IsActive() && org.Name == name {
			return true
		}
	}
	return false
}

// checkOrganizationUnique mirrors the unique slug and the partial unique
// index on active names.
func (d *state) checkOrganizationUnique(org *models.Organization) error {
	for _, other := range d.organizations {
		if other.ID == org.ID {
			continue
		}
		if other.Slug == org.Slug {
			return store.ErrSlugConflict
		}
	}
	if org.IsActive() && d.activeNameTaken(org.Name, org.ID) {
		return store.ErrNameConflict
	}
	return nil
}
