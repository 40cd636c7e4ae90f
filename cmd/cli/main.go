package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/prepdeck/prepdeck/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Sign in"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Sign out and clear the session"`
		Register commands.RegisterCmd `cmd:"" help:"Create an account"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the current session"`
		Profile  commands.ProfileCmd  `cmd:"" help:"Manage profile and study preferences"`
		Reset    commands.ResetCmd    `cmd:"" help:"Reset a forgotten password"`
		Pages    commands.PagesCmd    `cmd:"" help:"Navigate pages through the route guard"`
		Admin    commands.AdminCmd    `cmd:"" help:"Privileged operations"`
		Config   string               `help:"Path to config file." type:"path"`
		Debug    bool                 `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Config: cli.Config})
	cmd.FatalIfErrorf(err)
}
