package commands

import (
	"context"

	"github.com/prepdeck/prepdeck/internal/authapi"
	"github.com/prepdeck/prepdeck/internal/googleauth"
)

// RegisterCmd creates an account. Password registration never yields a
// session; Google registration signs the user in when the backend returns a
// token in the same exchange.
type RegisterCmd struct {
	Email        string `help:"Account email." short:"e"`
	Password     string `help:"Account password." short:"p" env:"PREPDECK_PASSWORD"`
	Name         string `help:"Display name."`
	FieldOfStudy string `help:"Field of study preference." name:"field-of-study"`
	SelectedExam string `help:"Exam the account prepares for." name:"selected-exam"`
	Google       bool   `help:"Register with Google instead of a password."`
	Credential   string `help:"Pre-obtained Google credential (skips the browser flow)."`
}

func (c *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
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
		return printResult(app.manager.RegisterWithGoogle(ctx, credential))
	}

	return printResult(app.manager.Register(ctx, authapi.RegisterRequest{
		Email:        c.Email,
		Password:     c.Password,
		Name:         c.Name,
		FieldOfStudy: c.FieldOfStudy,
		SelectedExam: c.SelectedExam,
	}))
}
