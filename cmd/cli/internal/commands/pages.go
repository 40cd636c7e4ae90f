package commands

import (
	"context"
	"fmt"

	"github.com/prepdeck/prepdeck/internal/guard"
)

// PagesCmd navigates the client's page table through the route guard.
type PagesCmd struct {
	Open PagesOpenCmd `cmd:"" help:"Open a page, subject to the route guard"`
	List PagesListCmd `cmd:"" help:"List known pages and their requirements"`
}

type PagesOpenCmd struct {
	Path string `arg:"" help:"Page path, e.g. /dashboard or /admin/records."`
}

func (c *PagesOpenCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	app.manager.Startup(ctx)

	decision := guard.Evaluate(app.identity.Snapshot(), guard.Lookup(c.Path))
	if !decision.Allow {
		navigate(decision.RedirectTo)
		return nil
	}

	app.manager.TouchActivity()
	if err := app.store.SetLastPage(c.Path); err != nil {
		app.logger.Error().Err(err).Msg("failed to record last page")
	}

	fmt.Printf("opened %s\n", c.Path)
	return nil
}

type PagesListCmd struct{}

func (c *PagesListCmd) Run(ctx context.Context, globals *Globals) error {
	for _, route := range guard.Routes {
		switch {
		case route.Public:
			fmt.Printf("%-18s public\n", route.Path)
		case route.RequiredRole != "":
			fmt.Printf("%-18s requires role %s\n", route.Path, route.RequiredRole)
		case len(route.AllowedRoles) > 0:
			fmt.Printf("%-18s roles %v\n", route.Path, route.AllowedRoles)
		default:
			fmt.Printf("%-18s signed-in users\n", route.Path)
		}
	}
	return nil
}
