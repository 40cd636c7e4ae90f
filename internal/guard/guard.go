// Package guard decides whether a navigation into a protected area is
// admitted, and where to redirect when it is not.
package guard

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/prepdeck/prepdeck/internal/identity"
	"github.com/prepdeck/prepdeck/internal/models"
)

// Well-known destinations.
const (
	LoginPath   = "/login"
	LandingPath = "/dashboard"
)

// Route describes the authorization requirements of a protected area.
type Route struct {
	Path string

	// Public routes skip the guard entirely.
	Public bool

	// RequiredRole names a privileged role the route demands. An
	// authenticated user with a different role is sent to the default
	// landing page rather than the login screen.
	RequiredRole string

	// AllowedRoles is the admission set for the area. A user whose role
	// falls outside it is treated as an invalid or foreign session and
	// sent back to login, even though a user object exists.
	AllowedRoles []string
}

// Decision is the outcome of evaluating a navigation.
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Evaluate runs the guard's state machine: the checks run in order and the
// first match wins.
func Evaluate(st identity.State, route Route) Decision {
	if route.Public {
		return Decision{Allow: true}
	}

	if !st.Authenticated || st.User == nil {
		log.Debug().Str("path", route.Path).Msg("unauthenticated navigation, redirecting to login")
		return Decision{RedirectTo: LoginPath}
	}

	role := st.User.Role

	if route.RequiredRole != "" && role != route.RequiredRole {
		log.Debug().
			Str("path", route.Path).
			Str("role", role).
			Str("required", route.RequiredRole).
			Msg("insufficient role, redirecting to landing")
		return Decision{RedirectTo: LandingPath}
	}

	if len(route.AllowedRoles) > 0 && !slices.Contains(route.AllowedRoles, role) {
		log.Debug().
			Str("path", route.Path).
			Str("role", role).
			Msg("role outside allowed set, treating session as foreign")
		return Decision{RedirectTo: LoginPath}
	}

	return Decision{Allow: true}
}

// Routes is the client's page table. Admin screens admit admin and
// superadmin; the superadmin console requires the superadmin role itself.
var Routes = []Route{
	{Path: "/login", Public: true},
	{Path: "/register", Public: true},
	{Path: "/forgot-password", Public: true},
	{Path: "/dashboard"},
	{Path: "/profile"},
	{Path: "/exams"},
	{Path: "/admin", AllowedRoles: []string{models.RoleAdmin, models.RoleSuperAdmin}},
	{Path: "/admin/records", AllowedRoles: []string{models.RoleAdmin, models.RoleSuperAdmin}},
	{Path: "/admin/console", RequiredRole: models.RoleSuperAdmin, AllowedRoles: []string{models.RoleAdmin, models.RoleSuperAdmin}},
}

// Lookup finds a route by path. Unknown paths are treated as protected
// routes with no role requirements.
func Lookup(path string) Route {
	for _, r := range Routes {
		if r.Path == path {
			return r
		}
	}
	return Route{Path: path}
}
