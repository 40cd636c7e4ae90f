package commands

import (
	"context"
	"fmt"
)

// WhoamiCmd shows the current session state after the startup protocol.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	app.manager.Startup(ctx)

	st := app.identity.Snapshot()
	if !st.Authenticated {
		fmt.Println("not signed in")
		return nil
	}

	app.manager.TouchActivity()

	fmt.Printf("user:  %s <%s>\n", st.User.Name, st.User.Email)
	fmt.Printf("role:  %s\n", st.User.Role)
	if st.User.FieldOfStudy != "" {
		fmt.Printf("field: %s\n", st.User.FieldOfStudy)
	}
	if st.User.SelectedExam != "" {
		fmt.Printf("exam:  %s\n", st.User.SelectedExam)
	}
	if sub := st.User.Subscription; sub != nil {
		fmt.Printf("plan:  %s (%s, expires %s)\n", sub.Type, sub.Status, sub.ExpiresAt.Format("2006-01-02"))
	}
	if st.Err != "" {
		fmt.Printf("note:  %s\n", st.Err)
	}
	return nil
}
