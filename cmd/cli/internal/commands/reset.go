package commands

import (
	"context"
	"fmt"
)

// ResetCmd drives the three-step password reset flow. The email and code
// are threaded between steps through the session store, the way the web
// client chains its screens.
type ResetCmd struct {
	Request  ResetRequestCmd  `cmd:"" help:"Email a reset code"`
	Verify   ResetVerifyCmd   `cmd:"" help:"Verify the emailed code"`
	Complete ResetCompleteCmd `cmd:"" help:"Set the new password"`
}

type ResetRequestCmd struct {
	Email string `help:"Account email." short:"e" required:""`
}

func (c *ResetRequestCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}
	return printResult(app.manager.RequestPasswordReset(ctx, c.Email))
}

type ResetVerifyCmd struct {
	Code  string `help:"Reset code from the email." required:""`
	Email string `help:"Account email. Defaults to the pending reset email." short:"e"`
}

func (c *ResetVerifyCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	email := c.Email
	if email == "" {
		pending, ok := app.store.PendingResetEmail()
		if !ok {
			return fmt.Errorf("no reset in progress; run `prepdeck reset request` first")
		}
		email = pending
	}

	return printResult(app.manager.VerifyResetCode(ctx, email, c.Code))
}

type ResetCompleteCmd struct {
	NewPassword string `help:"New account password." name:"new-password" required:""`
}

func (c *ResetCompleteCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}
	return printResult(app.manager.ResetPassword(ctx, c.NewPassword))
}
