package lifecycle

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/events"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/policy"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/telemetry"
)

// DeletionRequirements lists the conditions a permanent delete must satisfy,
// for display before the user confirms.
func DeletionRequirements() []string {
	return []string{
		"You must have at least one organization",
		"You cannot delete your currently active organization",
		"All members must be removed first",
		"This deletion is permanent and cannot be undone",
	}
}

// Delete permanently removes an organization. The guards run in a fixed
// order inside the transaction and the first failure is returned before
// anything is written.
func (s *Service) Delete(ctx context.Context, actor models.Actor, orgID int64) (err error) {
	ctx, done := telemetry.StartAction(ctx, "organization.delete")
	defer func() { done(err) }()

	var deleted models.Organization

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		org, err := tx.Organizations().Get(ctx, orgID)
		if err != nil {
			return err
		}
		if err := s.checkDelete(ctx, tx, actor, org); err != nil {
			return err
		}

		deleted = *org
		return tx.Organizations().Delete(ctx, org.ID)
	})
	if err != nil {
		return apperrors.FromStore(err, "organization")
	}

	s.forgetSessions(ctx, deleted.ID)

	zerolog.Ctx(ctx).Info().
		Int64("org_id", deleted.ID).
		Str("name", deleted.Name).
		Int64("actor_id", actor.UserID()).
		Msg("Organization deleted")

	s.dispatcher.Dispatch(ctx, events.Event{
		Type:             events.OrganizationDeleted,
		OrganizationID:   deleted.ID,
		OrganizationName: deleted.Name,
		ActorID:          actor.UserID(),
	})
	return nil
}

// CanDelete evaluates the delete guards without changing anything. It
// returns nil when Delete would be allowed, otherwise the first failing guard.
func (s *Service) CanDelete(ctx context.Context, actor models.Actor, orgID int64) error {
	org, err := s.store.Organizations().Get(ctx, orgID)
	if err != nil {
		return apperrors.FromStore(err, "organization")
	}
	return apperrors.FromStore(s.checkDelete(ctx, s.store, actor, org), "organization")
}

func (s *Service) checkDelete(ctx context.Context, repos store.Repositories, actor models.Actor, org *models.Organization) error {
	if err := policy.Authorize(ctx, repos.Memberships(), org, actor.UserID(), policy.AbilityDelete); err != nil {
		return err
	}

	// inside a transaction this locks the owner row, so two deletes for the
	// same owner cannot both see the other organization
	if _, err := repos.Users().Get(ctx, actor.UserID()); err != nil {
		return err
	}

	owned, err := repos.Organizations().CountByOwner(ctx, actor.UserID())
	if err != nil {
		return err
	}
	if owned <= 1 {
		return apperrors.New(apperrors.KindLastOrganization, "Cannot delete your only organization. You must have at least one organization.")
	}

	current, ok, err := s.resolver.WithRepositories(repos).CurrentOrganizationID(ctx, actor)
	if err != nil {
		return err
	}
	if ok && current == org.ID {
		return apperrors.New(apperrors.KindCannotDeleteCurrent, "Cannot delete your current organization. Please switch to another organization first.")
	}

	members, err := repos.Memberships().CountActiveExcluding(ctx, org.ID, org.OwnerID)
	if err != nil {
		return err
	}
	if members > 0 {
		return apperrors.New(apperrors.KindHasActiveMembers, "Cannot delete organization with active members. Remove all members first.")
	}
	return nil
}

// SoftDelete moves an organization to the trash. Only the owner may do this.
// The slug stays reserved and the organization can be restored.
func (s *Service) SoftDelete(ctx context.Context, actor models.Actor, orgID int64) (err error) {
	ctx, done := telemetry.StartAction(ctx, "organization.soft_delete")
	defer func() { done(err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		org, err := tx.Organizations().Get(ctx, orgID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(ctx, tx.Memberships(), org, actor.UserID(), policy.AbilityDelete); err != nil {
			return err
		}

		now := s.now()
		org.DeletedAt = &now
		return tx.Organizations().Update(ctx, org)
	})
	if err != nil {
		return apperrors.FromStore(err, "organization")
	}

	s.forgetSessions(ctx, orgID)

	zerolog.Ctx(ctx).Info().Int64("org_id", orgID).Msg("Organization moved to trash")
	return nil
}

// Restore brings back a soft-deleted organization. The name must still be
// unique among active organizations.
func (s *Service) Restore(ctx context.Context, actor models.Actor, orgID int64) (org *models.Organization, err error) {
	ctx, done := telemetry.StartAction(ctx, "organization.restore")
	defer func() { done(err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		org, err = tx.Organizations().GetWithTrashed(ctx, orgID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(ctx, tx.Memberships(), org, actor.UserID(), policy.AbilityRestore); err != nil {
			return err
		}
		if org.IsActive() {
			return nil
		}

		taken, err := tx.Organizations().NameTaken(ctx, org.Name, org.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.FieldError("name", "An organization with this name already exists.")
		}

		org.DeletedAt = nil
		return tx.Organizations().Update(ctx, org)
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "organization")
	}

	zerolog.Ctx(ctx).Info().Int64("org_id", org.ID).Msg("Organization restored")
	return org, nil
}

func (s *Service) forgetSessions(ctx context.Context, orgID int64) {
	n, err := s.resolver.ForgetOrganization(ctx, orgID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("org_id", orgID).Msg("Failed to clear session overrides")
		return
	}
	if n > 0 {
		zerolog.Ctx(ctx).Debug().Int64("org_id", orgID).Int("sessions", n).Msg("Cleared session overrides")
	}
}
