package commands

import (
	"context"

	"github.com/prepdeck/prepdeck/internal/models"
)

// ProfileCmd updates study preferences and profile fields.
type ProfileCmd struct {
	Set ProfileSetCmd `cmd:"" help:"Update profile fields"`
}

// ProfileSetCmd merge-patches the profile. By default the patch round-trips
// through the backend; --local keeps the change on this device only.
type ProfileSetCmd struct {
	Name         string `help:"Display name."`
	FieldOfStudy string `help:"Field of study preference." name:"field-of-study"`
	SelectedExam string `help:"Exam the account prepares for." name:"selected-exam"`
	Local        bool   `help:"Apply locally without contacting the backend."`
}

func (c *ProfileSetCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	app.manager.Startup(ctx)
	app.manager.TouchActivity()

	var patch models.UserPatch
	if c.Name != "" {
		patch.Name = &c.Name
	}
	if c.FieldOfStudy != "" {
		patch.FieldOfStudy = &c.FieldOfStudy
	}
	if c.SelectedExam != "" {
		patch.SelectedExam = &c.SelectedExam
	}

	if c.Local {
		return printResult(app.manager.UpdateUser(patch))
	}
	return printResult(app.manager.UpdateProfile(ctx, patch))
}
