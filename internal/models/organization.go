package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant in the system.
// Each organization has exactly one owner and any number of members.
type Organization struct {
	ID          int64
	UUID        uuid.UUID // UUIDv7, public identifier
	OwnerID     int64     // FK to users
	Name        string    // Unique among active organizations
	Slug        string    // URL-safe, unique across all organizations including soft-deleted ones
	Description *string
	Settings    map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time // Soft delete
}

// IsActive returns true if the organization has not been soft-deleted.
func (o *Organization) IsActive() bool {
	return o.DeletedAt == nil
}

// IsOwnedBy returns true if userID is the owner of the organization.
func (o *Organization) IsOwnedBy(userID int64) bool {
	return o.OwnerID == userID
}

// DescriptionOrEmpty returns the description or an empty string when unset.
func (o *Organization) DescriptionOrEmpty() string {
	if o.Description == nil {
		return ""
	}
	return *o.Description
}

// AllSettings returns the settings document, never nil.
func (o *Organization) AllSettings() map[string]any {
	if o.Settings == nil {
		o.Settings = map[string]any{}
	}
	return o.Settings
}

// ReplaceSettings swaps in a new settings document.
func (o *Organization) ReplaceSettings(doc map[string]any) {
	o.Settings = doc
}
