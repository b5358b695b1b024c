package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfeidau/orgscope/internal/lifecycle"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/settings"
	"gopkg.in/yaml.v3"
)

type CreateCmd struct {
	Email       string `arg:"" help:"email of the owner"`
	Name        string `help:"organization name"`
	Description string `help:"organization description"`
	NoDefault   bool   `help:"create an additional organization without making it the owner's default" default:"false"`
}

func (c *CreateCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *CreateCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}

	return a.run(ctx, "organization.create", actor, func(ctx context.Context) error {
		org, err := a.lifecycle.Create(ctx, actor, lifecycle.CreateInput{
			Default:     !c.NoDefault,
			Name:        optional(c.Name),
			Description: optional(c.Description),
		})
		if err != nil {
			return err
		}
		printOrganization(a, org)
		return nil
	})
}

type UpdateCmd struct {
	Email        string `arg:"" help:"email of the acting user"`
	Organization string `arg:"" help:"organization ID or slug"`
	Name         string `help:"new name"`
	Description  string `help:"new description, blank keeps the current one"`
}

func (c *UpdateCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *UpdateCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}

	return a.run(ctx, "organization.update", actor, func(ctx context.Context) error {
		org, err := a.lifecycle.Lookup(ctx, c.Organization)
		if err != nil {
			return err
		}
		org, err = a.lifecycle.Update(ctx, actor, org.ID, lifecycle.UpdateInput{
			Name:        optional(c.Name),
			Description: optional(c.Description),
		})
		if err != nil {
			return err
		}
		printOrganization(a, org)
		return nil
	})
}

type SettingsCmd struct {
	Email        string            `arg:"" help:"email of the acting user"`
	Organization string            `arg:"" help:"organization ID or slug"`
	Set          map[string]string `help:"dotted setting path and YAML value, for example ui.theme=dark"`
	Reset        bool              `help:"restore the default settings" default:"false"`
}

func (c *SettingsCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *SettingsCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}

	return a.run(ctx, "organization.settings", actor, func(ctx context.Context) error {
		org, err := a.lifecycle.Lookup(ctx, c.Organization)
		if err != nil {
			return err
		}

		switch {
		case c.Reset:
			org, err = a.lifecycle.ResetSettings(ctx, actor, org.ID)
		case len(c.Set) > 0:
			var overrides settings.Document
			overrides, err = parseOverrides(c.Set)
			if err != nil {
				return err
			}
			org, err = a.lifecycle.UpdateSettings(ctx, actor, org.ID, overrides)
		}
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(settings.Merge(a.cfg.DefaultSettings, org.AllSettings()))
		if err != nil {
			return err
		}
		_, err = a.out.Write(out)
		return err
	})
}

// parseOverrides turns path=value pairs into a settings document. Values are
// decoded as YAML scalars so numbers and booleans keep their type.
func parseOverrides(pairs map[string]string) (settings.Document, error) {
	doc := settings.Document{}
	for path, raw := range pairs {
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", path, err)
		}
		settings.Set(doc, path, v)
	}
	return doc, nil
}

type DeleteCmd struct {
	Email        string `arg:"" help:"email of the acting user"`
	Organization string `arg:"" help:"organization ID or slug"`
	Yes          bool   `help:"skip the confirmation and delete" default:"false"`
}

func (c *DeleteCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *DeleteCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}

	return a.run(ctx, "organization.delete", actor, func(ctx context.Context) error {
		org, err := a.lifecycle.Lookup(ctx, c.Organization)
		if err != nil {
			return err
		}

		if !c.Yes {
			if err := a.lifecycle.CanDelete(ctx, actor, org.ID); err != nil {
				return err
			}
			a.printf("%s can be deleted. Re-run with --yes to delete it permanently.\n", org.Name)
			return nil
		}

		if err := a.lifecycle.Delete(ctx, actor, org.ID); err != nil {
			return err
		}
		a.printf("deleted %s (%s)\n", org.Name, org.Slug)
		return nil
	})
}

type CanDeleteCmd struct {
	Email        string `arg:"" help:"email of the acting user"`
	Organization string `arg:"" help:"organization ID or slug"`
}

func (c *CanDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *CanDeleteCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}

	org, err := a.lifecycle.Lookup(ctx, c.Organization)
	if err != nil {
		return err
	}

	a.printf("Before an organization can be deleted:\n")
	for _, req := range lifecycle.DeletionRequirements() {
		a.printf("  - %s\n", req)
	}

	if err := a.lifecycle.CanDelete(ctx, actor, org.ID); err != nil {
		a.printf("%s cannot be deleted: %s\n", org.Name, err)
		return nil
	}
	a.printf("%s can be deleted.\n", org.Name)
	return nil
}

type TransferCmd struct {
	Email        string `arg:"" help:"email of the current owner"`
	Organization string `arg:"" help:"organization ID or slug"`
	NewOwner     string `arg:"" help:"email of the new owner"`
}

func (c *TransferCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *TransferCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}
	newOwner, err := a.actor(ctx, c.NewOwner)
	if err != nil {
		return err
	}

	return a.run(ctx, "organization.transfer", actor, func(ctx context.Context) error {
		org, err := a.lifecycle.Lookup(ctx, c.Organization)
		if err != nil {
			return err
		}
		org, err = a.lifecycle.TransferOwnership(ctx, actor, org.ID, newOwner.UserID())
		if err != nil {
			return err
		}
		printOrganization(a, org)
		return nil
	})
}

type DefaultCmd struct {
	Email        string `arg:"" help:"email of the user"`
	Organization string `arg:"" help:"organization ID or slug"`
}

func (c *DefaultCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *DefaultCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}

	return a.run(ctx, "organization.default", actor, func(ctx context.Context) error {
		org, err := a.lifecycle.Lookup(ctx, c.Organization)
		if err != nil {
			return err
		}
		if _, err := a.resolver.MakeDefault(ctx, actor, org.ID); err != nil {
			return err
		}
		a.printf("default organization for %s is now %s\n", actor.IdentityEmail(), org.Slug)
		return nil
	})
}

type ListCmd struct {
	Email string `arg:"" help:"email of the user"`
}

func (c *ListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *ListCmd) run(ctx context.Context, a *app) error {
	actor, err := a.actor(ctx, c.Email)
	if err != nil {
		return err
	}

	current, hasCurrent, err := a.resolver.CurrentOrganizationID(ctx, actor)
	if err != nil {
		return err
	}

	orgs, err := a.memberships.OrganizationsForUser(ctx, actor.UserID())
	if err != nil {
		return err
	}

	a.printf("%-4s %-8s %-30s %-40s %s\n", "", "ID", "NAME", "SLUG", "ROLE")
	a.printf("%s\n", strings.Repeat("-", 96))
	for _, org := range orgs {
		marker := ""
		if hasCurrent && org.ID == current {
			marker = "*"
		}
		role := "owner"
		if !org.IsOwnedBy(actor.UserID()) {
			r, _, err := a.memberships.RoleOf(ctx, org.ID, actor.UserID())
			if err != nil {
				return err
			}
			role = r.Label()
		}
		a.printf("%-4s %-8d %-30s %-40s %s\n", marker, org.ID, org.Name, org.Slug, role)
	}
	return nil
}

func printOrganization(a *app, org *models.Organization) {
	a.printf("organization %d\n", org.ID)
	a.printf("  Name:        %s\n", org.Name)
	a.printf("  Slug:        %s\n", org.Slug)
	a.printf("  UUID:        %s\n", org.UUID)
	a.printf("  Owner:       %d\n", org.OwnerID)
	if org.Description != nil {
		a.printf("  Description: %s\n", *org.Description)
	}
}
