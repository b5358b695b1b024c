package commands

import (
	"context"

	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/invitation"
	"github.com/wolfeidau/orgscope/internal/lifecycle"
	"github.com/wolfeidau/orgscope/internal/models"
)

type UserCmd struct {
	Add UserAddCmd `cmd:"" help:"Register a user and create their default organization"`
}

type UserAddCmd struct {
	Email   string `arg:"" help:"user email address"`
	Name    string `arg:"" help:"display name"`
	NoOrg   bool   `help:"do not create a default organization" default:"false"`
	OrgName string `help:"name of the default organization"`
}

func (c *UserAddCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, c.run)
}

func (c *UserAddCmd) run(ctx context.Context, a *app) error {
	email, err := invitation.NormalizeEmail(c.Email)
	if err != nil {
		return err
	}

	user := &models.User{Email: email, Name: c.Name}
	if err := a.store.Users().Create(ctx, user); err != nil {
		return apperrors.FromStore(err, "user")
	}
	a.printf("user %d %s\n", user.ID, user.Email)

	if c.NoOrg {
		return nil
	}

	actor := models.NewActor(user, "")
	return a.run(ctx, "organization.create", actor, func(ctx context.Context) error {
		org, err := a.lifecycle.Create(ctx, actor, lifecycle.CreateInput{
			Default: true,
			Name:    optional(c.OrgName),
		})
		if err != nil {
			return err
		}
		printOrganization(a, org)
		return nil
	})
}
