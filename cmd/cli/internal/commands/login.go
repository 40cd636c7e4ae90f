package commands

import (
	"context"
	"fmt"

	"github.com/prepdeck/prepdeck/internal/googleauth"
)

// LoginCmd signs in with a password or a Google credential.
type LoginCmd struct {
	Email      string `help:"Account email. Defaults to the remembered email." short:"e"`
	Password   string `help:"Account password." short:"p" env:"PREPDECK_PASSWORD"`
	Google     bool   `help:"Sign in with Google instead of a password."`
	Credential string `help:"Pre-obtained Google credential (skips the browser flow)."`
	RememberMe bool   `help:"Remember the email for the next sign-in." name:"remember-me"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	if c.Google {
		credential := c.Credential
		if credential == "" {
			flow, err := googleauth.NewFlow(app.cfg.GoogleClientID, app.cfg.GoogleClientSecret)
			if err != nil {
				return err
			}
			credential, err = flow.Obtain(ctx)
			if err != nil {
				return err
			}
		}
		return printResult(app.manager.LoginWithGoogle(ctx, credential))
	}

	email := c.Email
	if email == "" {
		remembered, ok := app.store.RememberedEmail()
		if !ok {
			return fmt.Errorf("no email given and none remembered; pass --email")
		}
		email = remembered
	}
	if c.Password == "" {
		return fmt.Errorf("password required; pass --password or set PREPDECK_PASSWORD")
	}

	return printResult(app.manager.Login(ctx, email, c.Password, c.RememberMe))
}

// AdminCmd groups privileged operations.
type AdminCmd struct {
	Login AdminLoginCmd `cmd:"" help:"Sign in against the privileged endpoint"`
}

// AdminLoginCmd signs in a superadmin.
type AdminLoginCmd struct {
	Email    string `help:"Admin email." short:"e" required:""`
	Password string `help:"Admin password." short:"p" env:"PREPDECK_PASSWORD" required:""`
}

func (c *AdminLoginCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}
	return printResult(app.manager.SuperAdminLogin(ctx, c.Email, c.Password))
}

// LogoutCmd tears the current session down.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}
	app.manager.Startup(ctx)
	app.manager.Logout()
	fmt.Println("signed out")
	return nil
}
