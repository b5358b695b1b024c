// Package invitation implements the invitation workflow: a token based,
// time limited, single use offer for an email address to join an
// organization.
//
//	pending ──accept──▶ accepted
//	   │
//	   └────decline──▶ declined
//
// Expired is derived from ExpiresAt and never stored. An expired pending
// invitation can still be resent.
package invitation

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/events"
	"github.com/wolfeidau/orgscope/internal/membership"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/policy"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/telemetry"
	"github.com/wolfeidau/orgscope/internal/tenant"
	"github.com/wolfeidau/orgscope/internal/token"
)

// DefaultExpirationDays is how long an invitation stays valid.
const DefaultExpirationDays = 7

// Service implements the invitation state machine.
type Service struct {
	store          store.Store
	dispatcher     events.Dispatcher
	now            func() time.Time
	newToken       token.Generator
	expirationDays int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenGenerator overrides token.New.
func WithTokenGenerator(gen token.Generator) Option {
	return func(s *Service) { s.newToken = gen }
}

// WithExpirationDays sets the default validity period.
func WithExpirationDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.expirationDays = days
		}
	}
}

func NewService(st store.Store, dispatcher events.Dispatcher, opts ...Option) *Service {
	s := &Service{
		store:          st,
		dispatcher:     dispatcher,
		now:            time.Now,
		newToken:       token.New,
		expirationDays: DefaultExpirationDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail trims and lower-cases raw and checks it is a bare address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.New(apperrors.KindInvalidEmail, "Invalid email address provided.")
	}
	return email, nil
}

// SendInput holds the parameters of Send.
type SendInput struct {
	// OrganizationID is the inviting organization. When zero the organization
	// is taken from Scope.
	OrganizationID int64
	Scope          tenant.Scope
	Inviter        models.Identity
	Email          string
	Role           models.Role // defaults to member
	ExpirationDays int         // defaults to the service setting
}

// Send creates a pending invitation.
func (s *Service) Send(ctx context.Context, in SendInput) (inv *models.Invitation, err error) {
	ctx, done := telemetry.StartAction(ctx, "invitation.send")
	defer func() { done(err) }()

	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, apperrors.FieldError("role", fmt.Sprintf("The selected role %q is invalid.", role))
	}

	days := in.ExpirationDays
	if days <= 0 {
		days = s.expirationDays
	}

	tok, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invitation token: %w", err)
	}

	now := s.now()
	inviterID := in.Inviter.IdentityID()
	inv = &models.Invitation{
		UUID:            uuid.Must(uuid.NewV7()),
		OrganizationID:  in.OrganizationID,
		InvitedByUserID: &inviterID,
		Email:           email,
		Token:           tok,
		Role:            role,
		ExpiresAt:       now.AddDate(0, 0, days),
	}
	if !in.Scope.Stamp(inv) {
		return nil, apperrors.FieldError("organization", "An organization is required to send an invitation.")
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		org, err := tx.Organizations().Get(ctx, inv.OrganizationID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(ctx, tx.Memberships(), org, inviterID, policy.AbilityInviteMembers); err != nil {
			return err
		}

		member, err := tx.Memberships().HasActiveMemberWithEmail(ctx, org.ID, email)
		if err != nil {
			return err
		}
		if member {
			return apperrors.New(apperrors.KindAlreadyMember, "This user is already a member of the organization.")
		}

		existing, err := tx.Invitations().FindPending(ctx, org.ID, email)
		switch {
		case errors.Is(err, store.ErrInvitationNotFound):
		case err != nil:
			return err
		case existing.IsValidAt(now):
			return apperrors.New(apperrors.KindActiveInvitationExists, "An active invitation already exists for this email address.")
		default:
			// an expired pending invitation is superseded by the new one
			if err := tx.Invitations().SoftDelete(ctx, existing.ID, now); err != nil {
				return err
			}
		}

		return tx.Invitations().Create(ctx, inv)
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "organization")
	}

	zerolog.Ctx(ctx).Debug().
		Int64("org_id", inv.OrganizationID).
		Int64("invitation_id", inv.ID).
		Str("role", role.String()).
		Msg("Invitation sent")

	s.dispatcher.Dispatch(ctx, sentEvent(inv, inviterID))
	return inv, nil
}

// AcceptResult is returned by Accept.
type AcceptResult struct {
	Invitation   *models.Invitation
	Organization *models.Organization
	Membership   *models.Membership
}

// Accept accepts the invitation for acceptor. The invitation update and the
// new membership are committed together or not at all.
func (s *Service) Accept(ctx context.Context, invitationID int64, acceptor models.Identity) (res *AcceptResult, err error) {
	ctx, done := telemetry.StartAction(ctx, "invitation.accept")
	defer func() { done(err) }()

	now := s.now()
	res = &AcceptResult{}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		inv, err := tx.Invitations().Get(ctx, invitationID)
		if err != nil {
			return err
		}
		if err := checkResolvable(inv, now); err != nil {
			return err
		}
		if !strings.EqualFold(strings.TrimSpace(acceptor.IdentityEmail()), inv.Email) {
			return apperrors.New(apperrors.KindEmailMismatch, "The email address does not match the invitation.")
		}

		org, err := tx.Organizations().Get(ctx, inv.OrganizationID)
		if err != nil {
			return err
		}

		userID := acceptor.IdentityID()
		_, err = tx.Memberships().Get(ctx, org.ID, userID)
		switch {
		case err == nil:
			return apperrors.New(apperrors.KindAlreadyMember, "This user is already a member of the organization.")
		case !errors.Is(err, store.ErrMembershipNotFound):
			return err
		}

		inv.AcceptedAt = &now
		inv.UserID = &userID
		if err := tx.Invitations().Update(ctx, inv); err != nil {
			return err
		}

		m, err := membership.Attach(ctx, tx, org.ID, userID, inv.Role, true)
		if err != nil {
			return err
		}

		res.Invitation, res.Organization, res.Membership = inv, org, m
		return nil
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "invitation")
	}

	zerolog.Ctx(ctx).Debug().
		Int64("org_id", res.Organization.ID).
		Int64("invitation_id", invitationID).
		Int64("user_id", acceptor.IdentityID()).
		Msg("Invitation accepted")

	s.dispatcher.Dispatch(ctx,
		events.Event{
			Type:             events.InvitationAccepted,
			OrganizationID:   res.Organization.ID,
			OrganizationName: res.Organization.Name,
			InvitationID:     res.Invitation.ID,
			UserID:           acceptor.IdentityID(),
			Email:            res.Invitation.Email,
			Role:             res.Invitation.Role,
			ActorID:          acceptor.IdentityID(),
		},
		membership.AddedEvent(res.Membership, acceptor.IdentityID()),
	)
	return res, nil
}

// AcceptByToken looks up the invitation by token and accepts it.
func (s *Service) AcceptByToken(ctx context.Context, tok string, acceptor models.Identity) (*AcceptResult, error) {
	inv, err := s.FindByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	return s.Accept(ctx, inv.ID, acceptor)
}

// Decline marks a pending, unexpired invitation as declined.
func (s *Service) Decline(ctx context.Context, invitationID int64) (inv *models.Invitation, err error) {
	ctx, done := telemetry.StartAction(ctx, "invitation.decline")
	defer func() { done(err) }()

	now := s.now()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		inv, err = tx.Invitations().Get(ctx, invitationID)
		if err != nil {
			return err
		}
		if err := checkResolvable(inv, now); err != nil {
			return err
		}

		inv.DeclinedAt = &now
		return tx.Invitations().Update(ctx, inv)
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "invitation")
	}

	s.dispatcher.Dispatch(ctx, events.Event{
		Type:           events.InvitationDeclined,
		OrganizationID: inv.OrganizationID,
		InvitationID:   inv.ID,
		Email:          inv.Email,
	})
	return inv, nil
}

// DeclineByToken looks up the invitation by token and declines it.
func (s *Service) DeclineByToken(ctx context.Context, tok string) (*models.Invitation, error) {
	inv, err := s.FindByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	return s.Decline(ctx, inv.ID)
}

// Resend issues a new token and expiry for a pending invitation, including
// one that has already expired. expirationDays of zero uses the default.
func (s *Service) Resend(ctx context.Context, invitationID int64, actor models.Identity, expirationDays int) (inv *models.Invitation, err error) {
	ctx, done := telemetry.StartAction(ctx, "invitation.resend")
	defer func() { done(err) }()

	if expirationDays <= 0 {
		expirationDays = s.expirationDays
	}
	tok, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invitation token: %w", err)
	}
	now := s.now()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		inv, err = tx.Invitations().Get(ctx, invitationID)
		if err != nil {
			return err
		}
		org, err := tx.Organizations().Get(ctx, inv.OrganizationID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(ctx, tx.Memberships(), org, actor.IdentityID(), policy.AbilityInviteMembers); err != nil {
			return err
		}

		switch {
		case inv.IsAccepted():
			return apperrors.New(apperrors.KindAlreadyResolved, "Cannot resend an invitation that has been accepted.")
		case inv.IsDeclined():
			return apperrors.New(apperrors.KindAlreadyResolved, "Cannot resend an invitation that has been declined.")
		}

		inv.Token = tok
		inv.ExpiresAt = now.AddDate(0, 0, expirationDays)
		return tx.Invitations().Update(ctx, inv)
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "invitation")
	}

	s.dispatcher.Dispatch(ctx, sentEvent(inv, actor.IdentityID()))
	return inv, nil
}

// FindByToken returns the invitation holding tok.
func (s *Service) FindByToken(ctx context.Context, tok string) (*models.Invitation, error) {
	inv, err := s.store.Invitations().GetByToken(ctx, tok)
	if err != nil {
		return nil, apperrors.FromStore(err, "invitation")
	}
	return inv, nil
}

// ListPending returns the unresolved, unexpired invitations visible through scope.
func (s *Service) ListPending(ctx context.Context, scope tenant.Scope) ([]*models.Invitation, error) {
	invs, err := s.store.Invitations().List(ctx, scope, store.InvitationFilter{PendingOnly: true, ValidAt: s.now()})
	if err != nil {
		return nil, apperrors.FromStore(err, "invitation")
	}
	return invs, nil
}

// IsValid reports whether inv can be accepted right now.
func (s *Service) IsValid(inv *models.Invitation) bool {
	return inv.IsValidAt(s.now())
}

func checkResolvable(inv *models.Invitation, now time.Time) error {
	switch {
	case inv.IsAccepted():
		return apperrors.New(apperrors.KindAlreadyResolved, "This invitation has already been accepted.")
	case inv.IsDeclined():
		return apperrors.New(apperrors.KindAlreadyResolved, "This invitation has already been declined.")
	case inv.IsExpiredAt(now):
		return apperrors.New(apperrors.KindExpired, "This invitation has expired.")
	}
	return nil
}

func sentEvent(inv *models.Invitation, actorID int64) events.Event {
	expires := inv.ExpiresAt
	return events.Event{
		Type:           events.InvitationSent,
		OrganizationID: inv.OrganizationID,
		InvitationID:   inv.ID,
		Email:          inv.Email,
		Role:           inv.Role,
		ActorID:        actorID,
		ExpiresAt:      &expires,
	}
}
