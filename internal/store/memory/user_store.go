package memory

import (
	"context"
	"strings"
	"time"

	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
)

// UserStore implements store.UserStore using in-memory storage.
type UserStore struct {
	db access
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	return s.db.write(func(d *state) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, user.Email) {
				return store.ErrUserAlreadyExists
			}
		}

		d.nextUserID++
		now := time.Now()
		user.ID = d.nextUserID
		user.CreatedAt = now
		user.UpdatedAt = now

		d.users[user.ID] = cloneUser(user)
		return nil
	})
}

func (s *UserStore) Get(ctx context.Context, userID int64) (*models.User, error) {
	var result *models.User
	err := s.db.read(func(d *state) error {
		u, ok := d.users[userID]
		if !ok {
			return store.ErrUserNotFound
		}
		result = cloneUser(u)
		return nil
	})
	return result, err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var result *models.User
	err := s.db.read(func(d *state) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, email) {
				result = cloneUser(u)
				return nil
			}
		}
		return store.ErrUserNotFound
	})
	return result, err
}

// SetDefaultOrganization writes the durable default organization.
func (s *UserStore) SetDefaultOrganization(ctx context.Context, userID int64, orgID *int64) error {
	return s.db.write(func(d *state) error {
		u, ok := d.users[userID]
		if !ok {
			return store.ErrUserNotFound
		}
		if orgID != nil {
			if _, ok := d.organizations[*orgID]; !ok {
				return store.ErrOrganizationNotFound
			}
		}
		u.DefaultOrganizationID = clonePtr(orgID)
		u.UpdatedAt = time.Now()
		return nil
	})
}
