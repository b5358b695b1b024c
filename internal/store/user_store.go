package store

import (
	"context"

	"github.com/wolfeidau/orgscope/internal/models"
)

var (
	ErrUserNotFound      = notFound("user")
	ErrUserAlreadyExists = conflict("user already exists")
)

// UserStore holds the identities that own and join organizations.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error

	Get(ctx context.Context, userID int64) (*models.User, error)

	// GetByEmail looks up a user case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// SetDefaultOrganization writes the durable default organization. nil clears it.
	SetDefaultOrganization(ctx context.Context, userID int64, orgID *int64) error
}
