// Package orgcontext resolves which organization scopes a unit of work.
//
// Resolution order, first match wins:
//
//  1. the per-session override written by Switch / SetEphemeral
//  2. the user's durable default organization, if it still exists
//  3. no organization
//
// The override lives in an Overlay and is never persisted.
package orgcontext

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/policy"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/tenant"
)

// Overlay stores the per-session organization override. Implementations
// must key entries by session and never return an entry written for a
// different user.
type Overlay interface {
	Get(ctx context.Context, sessionID string, userID int64) (int64, bool, error)
	Set(ctx context.Context, sessionID string, userID, orgID int64) error
	Forget(ctx context.Context, sessionID string) error
	ForgetOrganization(ctx context.Context, orgID int64) (int, error)
}

// Resolver implements the current organization lookup.
type Resolver struct {
	repos   store.Repositories
	overlay Overlay
}

// NewResolver creates a resolver reading durable state from repos.
func NewResolver(repos store.Repositories, overlay Overlay) *Resolver {
	return &Resolver{repos: repos, overlay: overlay}
}

// WithRepositories returns a resolver that reads durable state through repos,
// typically the repositories of an open transaction.
func (r *Resolver) WithRepositories(repos store.Repositories) *Resolver {
	return &Resolver{repos: repos, overlay: r.overlay}
}

// CurrentOrganizationID returns the organization scoping work for actor, or
// false when there is none. A dangling default is reported as none.
func (r *Resolver) CurrentOrganizationID(ctx context.Context, actor models.Actor) (int64, bool, error) {
	orgID, ok, err := r.overlay.Get(ctx, actor.SessionID, actor.UserID())
	if err != nil {
		return 0, false, err
	}
	if ok {
		return orgID, true, nil
	}

	return r.durableDefault(ctx, actor.UserID())
}

func (r *Resolver) durableDefault(ctx context.Context, userID int64) (int64, bool, error) {
	user, err := r.repos.Users().Get(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if user.DefaultOrganizationID == nil {
		return 0, false, nil
	}

	orgID := *user.DefaultOrganizationID
	_, err = r.repos.Organizations().Get(ctx, orgID)
	if errors.Is(err, store.ErrOrganizationNotFound) {
		zerolog.Ctx(ctx).Debug().
			Int64("user_id", userID).
			Int64("org_id", orgID).
			Msg("Default organization no longer exists")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return orgID, true, nil
}

// HasResolvableDefault reports whether the user's durable default points at an
// existing organization.
func (r *Resolver) HasResolvableDefault(ctx context.Context, userID int64) (bool, error) {
	_, ok, err := r.durableDefault(ctx, userID)
	return ok, err
}

// SetEphemeral writes the session override only. A nil orgID clears it.
func (r *Resolver) SetEphemeral(ctx context.Context, actor models.Actor, orgID *int64) error {
	if orgID == nil {
		return r.overlay.Forget(ctx, actor.SessionID)
	}
	return r.overlay.Set(ctx, actor.SessionID, actor.UserID(), *orgID)
}

// SetDefault writes the durable default and keeps the session override in step.
func (r *Resolver) SetDefault(ctx context.Context, actor models.Actor, orgID int64) error {
	if err := r.repos.Users().SetDefaultOrganization(ctx, actor.UserID(), &orgID); err != nil {
		return err
	}
	if actor.SessionID == "" {
		return nil
	}
	return r.overlay.Set(ctx, actor.SessionID, actor.UserID(), orgID)
}

// ClearSession drops the session override, for example at logout.
func (r *Resolver) ClearSession(ctx context.Context, actor models.Actor) error {
	return r.overlay.Forget(ctx, actor.SessionID)
}

// SyncFromDefault copies the durable default into the session override,
// typically right after login. It is a no-op without a resolvable default.
func (r *Resolver) SyncFromDefault(ctx context.Context, actor models.Actor) error {
	if actor.SessionID == "" {
		return nil
	}
	orgID, ok, err := r.durableDefault(ctx, actor.UserID())
	if err != nil || !ok {
		return err
	}
	return r.overlay.Set(ctx, actor.SessionID, actor.UserID(), orgID)
}

// ForgetOrganization drops every session override pointing at orgID. It is
// called after the organization has been removed.
func (r *Resolver) ForgetOrganization(ctx context.Context, orgID int64) (int, error) {
	return r.overlay.ForgetOrganization(ctx, orgID)
}

// Switch makes orgID the current organization for the actor's session
// without touching durable state. The actor must own or be an active member
// of the organization.
func (r *Resolver) Switch(ctx context.Context, actor models.Actor, orgID int64) (*models.Organization, error) {
	org, err := r.requireAccess(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	if err := r.SetEphemeral(ctx, actor, &org.ID); err != nil {
		return nil, apperrors.FromStore(err, "session")
	}

	zerolog.Ctx(ctx).Debug().
		Int64("user_id", actor.UserID()).
		Int64("org_id", org.ID).
		Msg("Switched organization")
	return org, nil
}

// MakeDefault persists orgID as the actor's default organization, with the
// same access check as Switch.
func (r *Resolver) MakeDefault(ctx context.Context, actor models.Actor, orgID int64) (*models.Organization, error) {
	org, err := r.requireAccess(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	if err := r.SetDefault(ctx, actor, org.ID); err != nil {
		return nil, apperrors.FromStore(err, "organization")
	}
	return org, nil
}

func (r *Resolver) requireAccess(ctx context.Context, actor models.Actor, orgID int64) (*models.Organization, error) {
	org, err := r.repos.Organizations().Get(ctx, orgID)
	if err != nil {
		return nil, apperrors.FromStore(err, "organization")
	}

	rel, err := policy.Relate(ctx, r.repos.Memberships(), org, actor.UserID())
	if err != nil {
		return nil, apperrors.FromStore(err, "membership")
	}
	if rel != policy.Owner && rel != policy.Administrator && rel != policy.Member {
		return nil, apperrors.New(apperrors.KindForbidden, "You do not have access to this organization.")
	}
	return org, nil
}

// Scope returns the query scope for the actor's current organization.
func (r *Resolver) Scope(ctx context.Context, actor models.Actor) (tenant.Scope, error) {
	orgID, ok, err := r.CurrentOrganizationID(ctx, actor)
	if err != nil {
		return tenant.None(), err
	}
	if !ok {
		return tenant.None(), nil
	}
	return tenant.Current(orgID), nil
}
