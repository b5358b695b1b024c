package commands

import (
	"context"
	"errors"
)

type SwitchCmd struct {
	Email        string `arg:"" help:"email of the user"`
	Organization string `arg:"" help:"organization ID or slug"`
}

func (c *SwitchCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *SwitchCmd) run(ctx context.Context, a *app) error {
	if a.session == "" {
		return errors.New("switching organization requires --session or ORGSCOPE_SESSION")
	}

	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}

	return a.run(ctx, "organization.switch", actor, func(ctx context.Context) error {
		org, err := a.lifecycle.Lookup(ctx, c.Organization)
		if err != nil {
			return err
		}
		if _, err := a.resolver.Switch(ctx, actor, org.ID); err != nil {
			return err
		}
		a.printf("session %s is now using %s\n", a.session, org.Slug)
		return nil
	})
}

type SessionsCmd struct {
	Forget SessionsForgetCmd `cmd:"" help:"Drop the override for the current session and fall back to the default"`
	Prune  SessionsPruneCmd  `cmd:"" help:"Delete expired session overrides"`
}

type SessionsForgetCmd struct {
	Email string `arg:"" help:"email of the user"`
}

func (c *SessionsForgetCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *SessionsForgetCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}
	if err := a.resolver.ClearSession(ctx, actor); err != nil {
		return err
	}
	a.printf("cleared session override for %s\n", actor.IdentityEmail())
	return nil
}

// expiringOverlay is implemented by overlays that expire entries.
type expiringOverlay interface {
	DeleteExpired(ctx context.Context) (int, error)
}

type SessionsPruneCmd struct{}

func (c *SessionsPruneCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *SessionsPruneCmd) run(ctx context.Context, a *app) error {
	overlay, ok := a.overlay.(expiringOverlay)
	if !ok {
		a.printf("session overrides do not expire\n")
		return nil
	}
	n, err := overlay.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	a.printf("deleted %d expired session overrides\n", n)
	return nil
}
