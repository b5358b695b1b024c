package lifecycle

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/events"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/policy"
	"github.com/wolfeidau/orgscope/internal/settings"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/telemetry"
)

const (
	minNameLength        = 2
	maxNameLength        = 255
	maxDescriptionLength = 1000
)

// UpdateInput holds the fields to change. A nil field is left as is; an
// empty Description clears it.
type UpdateInput struct {
	Name        *string
	Description *string
}

// Update changes the name and description of an organization. The slug is
// regenerated only when the name changes.
func (s *Service) Update(ctx context.Context, actor models.Actor, orgID int64, in UpdateInput) (org *models.Organization, err error) {
	ctx, done := telemetry.StartAction(ctx, "organization.update")
	defer func() { done(err) }()

	var changes map[string]any

	err = s.withSlugRetry(ctx, func(ctx context.Context, tx store.Repositories) error {
		org, err = tx.Organizations().Get(ctx, orgID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(ctx, tx.Memberships(), org, actor.UserID(), policy.AbilityUpdate); err != nil {
			return err
		}

		name := org.Name
		if in.Name != nil {
			name = strings.TrimSpace(*in.Name)
		}
		description := org.Description
		if in.Description != nil {
			description = normalizeDescription(*in.Description)
		}

		fields := validateDetails(name, description)
		nameChanged := name != org.Name
		if nameChanged && len(fields["name"]) == 0 {
			taken, err := tx.Organizations().NameTaken(ctx, name, org.ID)
			if err != nil {
				return err
			}
			if taken {
				fields["name"] = append(fields["name"], "An organization with this name already exists.")
			}
		}
		if len(fields) > 0 {
			return apperrors.Validation(fields)
		}

		changes = map[string]any{}
		if nameChanged {
			org.Name = name
			org.Slug = s.newSlug(name)
			changes["name"] = name
			changes["slug"] = org.Slug
		}
		if !equalStringPtr(description, org.Description) {
			org.Description = description
			changes["description"] = org.DescriptionOrEmpty()
		}

		return tx.Organizations().Update(ctx, org)
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("org_id", org.ID).
		Int("changes", len(changes)).
		Msg("Organization updated")

	s.dispatcher.Dispatch(ctx, events.Event{
		Type:             events.OrganizationUpdated,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		ActorID:          actor.UserID(),
		Changes:          changes,
	})
	return org, nil
}

// UpdateSettings merges overrides into the organization's settings and
// validates the result against the configured rules.
func (s *Service) UpdateSettings(ctx context.Context, actor models.Actor, orgID int64, overrides settings.Document) (*models.Organization, error) {
	return s.changeSettings(ctx, actor, orgID, "organization.update_settings", func(org *models.Organization) {
		s.settings.MergeOverrides(org, overrides)
	})
}

// ResetSettings restores the default settings document.
func (s *Service) ResetSettings(ctx context.Context, actor models.Actor, orgID int64) (*models.Organization, error) {
	return s.changeSettings(ctx, actor, orgID, "organization.reset_settings", func(org *models.Organization) {
		s.settings.Reset(org)
	})
}

func (s *Service) changeSettings(ctx context.Context, actor models.Actor, orgID int64, action string, apply func(*models.Organization)) (org *models.Organization, err error) {
	ctx, done := telemetry.StartAction(ctx, action)
	defer func() { done(err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		org, err = tx.Organizations().Get(ctx, orgID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(ctx, tx.Memberships(), org, actor.UserID(), policy.AbilityManageSettings); err != nil {
			return err
		}

		apply(org)
		if err := s.settings.Validate(org); err != nil {
			return err
		}
		return tx.Organizations().Update(ctx, org)
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "organization")
	}

	s.dispatcher.Dispatch(ctx, events.Event{
		Type:             events.OrganizationUpdated,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		ActorID:          actor.UserID(),
		Changes:          map[string]any{"settings": settings.Clone(org.AllSettings())},
	})
	return org, nil
}

// validateDetails returns field messages for an invalid name or description.
// The map is never nil.
func validateDetails(name string, description *string) map[string][]string {
	fields := map[string][]string{}

	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		fields["name"] = []string{"The organization name is required."}
	case n < minNameLength:
		fields["name"] = []string{"The organization name must be at least 2 characters."}
	case n > maxNameLength:
		fields["name"] = []string{"The organization name must not exceed 255 characters."}
	}

	if description != nil && utf8.RuneCountInString(*description) > maxDescriptionLength {
		fields["description"] = []string{"The description must not exceed 1000 characters."}
	}
	return fields
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
