package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/orgscope/cmd/orgctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		User        commands.UserCmd        `cmd:"" help:"Manage users"`
		Create      commands.CreateCmd      `cmd:"" help:"Create an organization"`
		Update      commands.UpdateCmd      `cmd:"" help:"Update an organization's name or description"`
		Settings    commands.SettingsCmd    `cmd:"" help:"Show or change organization settings"`
		Delete      commands.DeleteCmd      `cmd:"" help:"Delete an organization"`
		CanDelete   commands.CanDeleteCmd   `cmd:"" name:"can-delete" help:"Check whether an organization can be deleted"`
		Transfer    commands.TransferCmd    `cmd:"" help:"Transfer organization ownership"`
		Default     commands.DefaultCmd     `cmd:"" help:"Make an organization a user's default"`
		List        commands.ListCmd        `cmd:"" help:"List a user's organizations"`
		Invite      commands.InviteCmd      `cmd:"" help:"Invite someone to an organization"`
		Invitations commands.InvitationsCmd `cmd:"" help:"List pending invitations"`
		Accept      commands.AcceptCmd      `cmd:"" help:"Accept an invitation"`
		Decline     commands.DeclineCmd     `cmd:"" help:"Decline an invitation"`
		Switch      commands.SwitchCmd      `cmd:"" help:"Switch the current organization for a session"`
		Sessions    commands.SessionsCmd    `cmd:"" help:"Manage session organization overrides"`
		Migrate     commands.MigrateCmd     `cmd:"" help:"Run database migrations"`

		Debug   bool                  `help:"Enable debug mode."`
		Config  string                `help:"path to an organization config file" env:"ORGSCOPE_CONFIG"`
		Session string                `help:"session ID to act through" env:"ORGSCOPE_SESSION"`
		Backend commands.BackendFlags `embed:""`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Version: version,
		Config:  cli.Config,
		Session: cli.Session,
		Backend: cli.Backend,
	})
	cmd.FatalIfErrorf(err)
}
