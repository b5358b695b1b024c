package commands

import (
	"context"
	"strings"
	"time"

	"github.com/wolfeidau/orgscope/internal/invitation"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/tenant"
)

type InviteCmd struct {
	Email        string `arg:"" help:"email of the inviting user"`
	Organization string `arg:"" help:"organization ID or slug"`
	Invitee      string `arg:"" help:"email address to invite"`
	Role         string `help:"role granted on acceptance (administrator or member)" default:"member" enum:"administrator,member"`
	Days         int    `help:"days until the invitation expires, 0 uses the configured default" default:"0"`
}

func (c *InviteCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *InviteCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}
	role, err := models.ParseRole(c.Role)
	if err != nil {
		return err
	}

	return a.run(ctx, "invitation.send", actor, func(ctx context.Context) error {
		org, err := a.lifecycle.Lookup(ctx, c.Organization)
		if err != nil {
			return err
		}
		inv, err := a.invitations.Send(ctx, invitation.SendInput{
			OrganizationID: org.ID,
			Inviter:        actor,
			Email:          c.Invitee,
			Role:           role,
			ExpirationDays: c.Days,
		})
		if err != nil {
			return err
		}
		a.printf("invited %s to %s as %s\n", inv.Email, org.Name, inv.Role.Label())
		a.printf("  Token:   %s\n", inv.Token)
		a.printf("  Expires: %s\n", inv.ExpiresAt.Format(time.RFC3339))
		return nil
	})
}

type InvitationsCmd struct {
	Organization string `arg:"" help:"organization ID or slug"`
}

func (c *InvitationsCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *InvitationsCmd) run(ctx context.Context, a *app) error {
	org, err := a.lifecycle.Lookup(ctx, c.Organization)
	if err != nil {
		return err
	}

	pending, err := a.invitations.ListPending(ctx, tenant.None().ForOrganization(org.ID))
	if err != nil {
		return err
	}

	a.printf("%-8s %-40s %-15s %s\n", "ID", "EMAIL", "ROLE", "EXPIRES")
	a.printf("%s\n", strings.Repeat("-", 90))
	for _, inv := range pending {
		a.printf("%-8d %-40s %-15s %s\n", inv.ID, inv.Email, inv.Role.Label(), inv.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

type AcceptCmd struct {
	Email string `arg:"" help:"email of the accepting user"`
	Token string `arg:"" help:"invitation token"`
}

func (c *AcceptCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *AcceptCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}

	return a.run(ctx, "invitation.accept", actor, func(ctx context.Context) error {
		res, err := a.invitations.AcceptByToken(ctx, c.Token, actor)
		if err != nil {
			return err
		}
		a.printf("%s joined %s as %s\n", actor.IdentityEmail(), res.Organization.Name, res.Membership.Role.Label())
		return nil
	})
}

type DeclineCmd struct {
	Token string `arg:"" help:"invitation token"`
}

func (c *DeclineCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *DeclineCmd) run(ctx context.Context, a *app) error {
	inv, err := a.invitations.DeclineByToken(ctx, c.Token)
	if err != nil {
		return err
	}
	a.printf("declined invitation for %s\n", inv.Email)
	return nil
}
