// Package lifecycle implements the organization lifecycle actions: create,
// update, delete (with its guards), soft delete, restore and ownership
// transfer.
//
// Every action re-checks policy and guards inside a single transaction and
// dispatches its domain events only after the transaction commits.
package lifecycle

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/events"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/orgcontext"
	"github.com/wolfeidau/orgscope/internal/settings"
	"github.com/wolfeidau/orgscope/internal/slug"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultSlugAttempts bounds how many slugs are tried before giving up with
// a SlugCollision error.
const DefaultSlugAttempts = 3

// Service implements the organization lifecycle.
type Service struct {
	store        store.Store
	resolver     *orgcontext.Resolver
	dispatcher   events.Dispatcher
	settings     *settings.Manager
	newSlug      slug.Generator
	now          func() time.Time
	slugAttempts uint
}

// Option configures a Service.
type Option func(*Service)

// WithSettings sets the settings defaults and rules applied to new
// organizations and checked on every settings change.
func WithSettings(m *settings.Manager) Option {
	return func(s *Service) { s.settings = m }
}

// WithSlugGenerator overrides slug.New.
func WithSlugGenerator(gen slug.Generator) Option {
	return func(s *Service) { s.newSlug = gen }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSlugAttempts overrides DefaultSlugAttempts.
func WithSlugAttempts(n uint) Option {
	return func(s *Service) {
		if n > 0 {
			s.slugAttempts = n
		}
	}
}

func NewService(st store.Store, resolver *orgcontext.Resolver, dispatcher events.Dispatcher, opts ...Option) *Service {
	s := &Service{
		store:        st,
		resolver:     resolver,
		dispatcher:   dispatcher,
		settings:     settings.NewManager(nil, nil),
		newSlug:      slug.New,
		now:          time.Now,
		slugAttempts: DefaultSlugAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput holds the parameters of Create.
type CreateInput struct {
	// Default makes the new organization the actor's durable default. It
	// fails if the actor already has a default that still resolves.
	Default     bool
	Name        *string
	Description *string
}

// Create creates an organization owned by the actor.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (org *models.Organization, err error) {
	ctx, done := telemetry.StartAction(ctx, "organization.create")
	defer func() { done(err) }()

	displayName := ownerLabel(actor)

	name := defaultName(displayName)
	customName := in.Name != nil && strings.TrimSpace(*in.Name) != ""
	if customName {
		name = strings.TrimSpace(*in.Name)
	}

	var description *string
	switch {
	case in.Description != nil:
		description = normalizeDescription(*in.Description)
	case customName:
		description = ptr("Organization for " + displayName)
	default:
		description = ptr("Default organization for " + displayName)
	}

	if fields := validateDetails(name, description); len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	org = &models.Organization{
		UUID:        uuid.Must(uuid.NewV7()),
		OwnerID:     actor.UserID(),
		Name:        name,
		Description: description,
	}
	s.settings.ApplyDefaults(org)
	if err := s.settings.Validate(org); err != nil {
		return nil, err
	}

	err = s.withSlugRetry(ctx, func(ctx context.Context, tx store.Repositories) error {
		// serializes creates and deletes for the same owner
		if _, err := tx.Users().Get(ctx, actor.UserID()); err != nil {
			return err
		}

		if in.Default {
			has, err := s.resolver.WithRepositories(tx).HasResolvableDefault(ctx, actor.UserID())
			if err != nil {
				return err
			}
			if has {
				return apperrors.New(apperrors.KindDuplicateDefaultOrganization, "User already has a default organization.")
			}
		}

		taken, err := tx.Organizations().NameTaken(ctx, org.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.FieldError("name", "An organization with this name already exists.")
		}

		org.Slug = s.newSlug(org.Name)
		if err := tx.Organizations().Create(ctx, org); err != nil {
			return err
		}

		if in.Default {
			return tx.Users().SetDefaultOrganization(ctx, actor.UserID(), &org.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.Default && actor.SessionID != "" {
		if err := s.resolver.SetEphemeral(ctx, actor, &org.ID); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("org_id", org.ID).Msg("Failed to sync session organization")
		}
	}

	zerolog.Ctx(ctx).Info().
		Int64("org_id", org.ID).
		Str("slug", org.Slug).
		Int64("owner_id", org.OwnerID).
		Bool("default", in.Default).
		Msg("Organization created")

	s.dispatcher.Dispatch(ctx, events.Event{
		Type:             events.OrganizationCreated,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		ActorID:          actor.UserID(),
	})
	return org, nil
}

// CreateAdditional creates a non-default organization with the given name.
func (s *Service) CreateAdditional(ctx context.Context, actor models.Actor, name string, description *string) (*models.Organization, error) {
	return s.Create(ctx, actor, CreateInput{Name: &name, Description: description})
}

// Lookup finds an active organization by numeric id or by slug.
func (s *Service) Lookup(ctx context.Context, ref string) (*models.Organization, error) {
	var (
		org *models.Organization
		err error
	)
	if id, perr := strconv.ParseInt(ref, 10, 64); perr == nil {
		org, err = s.store.Organizations().Get(ctx, id)
	} else {
		org, err = s.store.Organizations().GetBySlug(ctx, ref)
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "organization")
	}
	return org, nil
}

// withSlugRetry runs fn in a transaction, retrying the whole transaction when
// the generated slug collides. fn must generate a fresh slug on each call.
func (s *Service) withSlugRetry(ctx context.Context, fn store.TxFunc) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.store.WithinTx(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, store.ErrSlugConflict):
			telemetry.GetMetrics().SlugRetriesTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("action", "organization"),
			))
			zerolog.Ctx(ctx).Debug().Err(err).Msg("Slug collision, retrying with a new suffix")
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(&backoff.ZeroBackOff{}), backoff.WithMaxTries(s.slugAttempts))

	if errors.Is(err, store.ErrSlugConflict) {
		return apperrors.Wrap(apperrors.KindSlugCollision, "Could not generate a unique slug for the organization, please try again.", err)
	}
	return apperrors.FromStore(err, "organization")
}

// ownerLabel names the identity in generated names and descriptions,
// falling back to the email address and then to "User".
func ownerLabel(id models.Identity) string {
	if name := strings.TrimSpace(id.DisplayName()); name != "" {
		return name
	}
	if email := strings.TrimSpace(id.IdentityEmail()); email != "" {
		return email
	}
	return "User"
}

func defaultName(displayName string) string {
	first := displayName
	if fields := strings.Fields(displayName); len(fields) > 0 {
		first = fields[0]
	}
	return first + "'s Organization"
}

func normalizeDescription(raw string) *string {
	d := strings.TrimSpace(raw)
	if d == "" {
		return nil
	}
	return &d
}

func ptr[T any](v T) *T {
	return &v
}
