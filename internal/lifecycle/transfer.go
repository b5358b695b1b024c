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

// TransferOwnership makes newOwnerID the owner of the organization. Only the
// current owner may transfer. Memberships are left untouched.
func (s *Service) TransferOwnership(ctx context.Context, actor models.Actor, orgID, newOwnerID int64) (org *models.Organization, err error) {
	ctx, done := telemetry.StartAction(ctx, "organization.transfer_ownership")
	defer func() { done(err) }()

	var previousOwnerID int64

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		org, err = tx.Organizations().Get(ctx, orgID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(ctx, tx.Memberships(), org, actor.UserID(), policy.AbilityTransferOwnership); err != nil {
			return err
		}
		if _, err := tx.Users().Get(ctx, newOwnerID); err != nil {
			return err
		}

		previousOwnerID = org.OwnerID
		org.OwnerID = newOwnerID
		return tx.Organizations().Update(ctx, org)
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "organization")
	}

	if previousOwnerID == newOwnerID {
		return org, nil
	}

	zerolog.Ctx(ctx).Info().
		Int64("org_id", org.ID).
		Int64("previous_owner_id", previousOwnerID).
		Int64("new_owner_id", newOwnerID).
		Msg("Organization ownership transferred")

	s.dispatcher.Dispatch(ctx, events.Event{
		Type:             events.OwnershipTransferred,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		ActorID:          actor.UserID(),
		PreviousOwnerID:  previousOwnerID,
		NewOwnerID:       newOwnerID,
	})
	return org, nil
}
