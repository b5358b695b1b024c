// Package membership manages which users belong to an organization and with
// what role. Every operation names the organization explicitly.
package membership

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/events"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
)

// Service implements the membership operations.
type Service struct {
	store      store.Store
	dispatcher events.Dispatcher
}

func NewService(st store.Store, dispatcher events.Dispatcher) *Service {
	return &Service{store: st, dispatcher: dispatcher}
}

// Attach inserts a membership through repos, which may belong to an open
// transaction. The caller dispatches AddedEvent after commit.
func Attach(ctx context.Context, repos store.Repositories, orgID, userID int64, role models.Role, active bool) (*models.Membership, error) {
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, apperrors.FieldError("role", fmt.Sprintf("The selected role %q is invalid.", role))
	}

	m := &models.Membership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		IsActive:       active,
	}
	if err := repos.Memberships().Add(ctx, m); err != nil {
		return nil, apperrors.FromStore(err, "organization")
	}
	return m, nil
}

// AddedEvent builds the MemberAdded event for m.
func AddedEvent(m *models.Membership, actorID int64) events.Event {
	return events.Event{
		Type:           events.MemberAdded,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Role:           m.Role,
		ActorID:        actorID,
	}
}

// Add makes userID a member of orgID. It fails with AlreadyMember if any
// membership row exists for the pair.
func (s *Service) Add(ctx context.Context, orgID, userID int64, role models.Role, active bool) (*models.Membership, error) {
	m, err := Attach(ctx, s.store, orgID, userID, role, active)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Int64("org_id", orgID).
		Int64("user_id", userID).
		Str("role", m.Role.String()).
		Msg("Member added")

	s.dispatcher.Dispatch(ctx, AddedEvent(m, 0))
	return m, nil
}

// Remove hard-deletes the membership row.
func (s *Service) Remove(ctx context.Context, orgID, userID int64) error {
	if err := s.store.Memberships().Remove(ctx, orgID, userID); err != nil {
		return apperrors.FromStore(err, "membership")
	}

	s.dispatcher.Dispatch(ctx, events.Event{
		Type:           events.MemberRemoved,
		OrganizationID: orgID,
		UserID:         userID,
	})
	return nil
}

// UpdateRole changes the member's role. MemberRoleChanged is emitted only when
// the stored role actually changes.
func (s *Service) UpdateRole(ctx context.Context, orgID, userID int64, role models.Role) error {
	if !role.Valid() {
		return apperrors.FieldError("role", fmt.Sprintf("The selected role %q is invalid.", role))
	}

	var oldRole models.Role
	changed := false

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		m, err := tx.Memberships().Get(ctx, orgID, userID)
		if err != nil {
			return err
		}
		if m.Role == role {
			return nil
		}

		oldRole = m.Role
		m.Role = role
		changed = true
		return tx.Memberships().Update(ctx, m)
	})
	if err != nil {
		return apperrors.FromStore(err, "membership")
	}
	if !changed {
		return nil
	}

	s.dispatcher.Dispatch(ctx, events.Event{
		Type:           events.MemberRoleChanged,
		OrganizationID: orgID,
		UserID:         userID,
		OldRole:        oldRole,
		NewRole:        role,
	})
	return nil
}

// SetActive toggles the active flag. No event is emitted.
func (s *Service) SetActive(ctx context.Context, orgID, userID int64, active bool) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		m, err := tx.Memberships().Get(ctx, orgID, userID)
		if err != nil {
			return err
		}
		if m.IsActive == active {
			return nil
		}
		m.IsActive = active
		return tx.Memberships().Update(ctx, m)
	})
	return apperrors.FromStore(err, "membership")
}

// RoleOf returns the member's role, or false when userID has no membership.
func (s *Service) RoleOf(ctx context.Context, orgID, userID int64) (models.Role, bool, error) {
	m, err := s.get(ctx, orgID, userID)
	if err != nil || m == nil {
		return "", false, err
	}
	return m.Role, true, nil
}

// IsOwner reports whether userID owns orgID.
func (s *Service) IsOwner(ctx context.Context, orgID, userID int64) (bool, error) {
	org, err := s.store.Organizations().Get(ctx, orgID)
	if err != nil {
		return false, apperrors.FromStore(err, "organization")
	}
	return org.IsOwnedBy(userID), nil
}

// HasMember reports whether any membership row exists, active or not.
func (s *Service) HasMember(ctx context.Context, orgID, userID int64) (bool, error) {
	m, err := s.get(ctx, orgID, userID)
	return m != nil, err
}

// HasActiveMember reports whether userID has an active membership.
func (s *Service) HasActiveMember(ctx context.Context, orgID, userID int64) (bool, error) {
	m, err := s.get(ctx, orgID, userID)
	return m != nil && m.IsActive, err
}

// UserHasRole reports whether userID is an active member holding role.
func (s *Service) UserHasRole(ctx context.Context, orgID, userID int64, role models.Role) (bool, error) {
	m, err := s.get(ctx, orgID, userID)
	return m != nil && m.IsActive && m.Role == role, err
}

// ListActive returns the active memberships of orgID.
func (s *Service) ListActive(ctx context.Context, orgID int64) ([]*models.Membership, error) {
	ms, err := s.store.Memberships().ListByOrganization(ctx, orgID, store.MembershipFilter{ActiveOnly: true})
	return ms, apperrors.FromStore(err, "organization")
}

// ListByRole returns the memberships of orgID holding role, active or not.
func (s *Service) ListByRole(ctx context.Context, orgID int64, role models.Role) ([]*models.Membership, error) {
	ms, err := s.store.Memberships().ListByOrganization(ctx, orgID, store.MembershipFilter{Role: role})
	return ms, apperrors.FromStore(err, "organization")
}

// OrganizationsForUser returns the active organizations userID owns or is an
// active member of, ordered by ID.
func (s *Service) OrganizationsForUser(ctx context.Context, userID int64) ([]*models.Organization, error) {
	owned, err := s.store.Organizations().ListByOwner(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore(err, "organization")
	}

	seen := make(map[int64]bool, len(owned))
	result := slices.Clone(owned)
	for _, org := range owned {
		seen[org.ID] = true
	}

	memberships, err := s.store.Memberships().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore(err, "membership")
	}
	for _, m := range memberships {
		if !m.IsActive || seen[m.OrganizationID] {
			continue
		}
		org, err := s.store.Organizations().Get(ctx, m.OrganizationID)
		if errors.Is(err, store.ErrOrganizationNotFound) {
			continue
		}
		if err != nil {
			return nil, apperrors.FromStore(err, "organization")
		}
		seen[org.ID] = true
		result = append(result, org)
	}

	slices.SortFunc(result, func(a, b *models.Organization) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

// BelongsTo reports whether userID owns orgID or has any membership in it.
func (s *Service) BelongsTo(ctx context.Context, orgID, userID int64) (bool, error) {
	owner, err := s.IsOwner(ctx, orgID, userID)
	if err != nil || owner {
		return owner, err
	}
	return s.HasMember(ctx, orgID, userID)
}

// IsAdministratorOf reports whether userID owns orgID or is an active administrator.
func (s *Service) IsAdministratorOf(ctx context.Context, orgID, userID int64) (bool, error) {
	owner, err := s.IsOwner(ctx, orgID, userID)
	if err != nil || owner {
		return owner, err
	}
	return s.UserHasRole(ctx, orgID, userID, models.RoleAdministrator)
}

// IsMemberOf reports whether userID owns orgID or is an active member in any role.
func (s *Service) IsMemberOf(ctx context.Context, orgID, userID int64) (bool, error) {
	owner, err := s.IsOwner(ctx, orgID, userID)
	if err != nil || owner {
		return owner, err
	}
	return s.HasActiveMember(ctx, orgID, userID)
}

func (s *Service) get(ctx context.Context, orgID, userID int64) (*models.Membership, error) {
	m, err := s.store.Memberships().Get(ctx, orgID, userID)
	if errors.Is(err, store.ErrMembershipNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "membership")
	}
	return m, nil
}
