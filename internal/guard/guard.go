package guard

import (
	"path"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Route paths of the navigation surface.
const (
	PathHome      = "/"
	PathLogin     = "/login"
	PathRegister  = "/register"
	PathDashboard = "/dashboard"
	PathUpload    = "/upload"
	PathAnalyze   = "/analyze"
	PathAPI       = "/api"
)

// Access classifies a route.
type Access int

const (
	Public Access = iota
	Protected
)

// Decision is the outcome of a navigation check.
type Decision struct {
	Render     bool
	RedirectTo string
}

// SessionReader is the part of the session the guard needs.
type SessionReader interface {
	IsAuthenticated() bool
}

// Guard gates protected routes on the current session. It holds no copy of the
// session state; every check asks the session again.
type Guard struct {
	session   SessionReader
	protected []string
}

// New returns a guard over the default route table.
func New(session SessionReader) *Guard {
	return &Guard{
		session:   session,
		protected: []string{PathDashboard, PathUpload, PathAnalyze, PathAPI},
	}
}

// AccessFor reports whether path is public or protected. A protected route
// covers its own path and every sub-path; anything else is public.
func (g *Guard) AccessFor(path string) Access {
	path = normalize(path)
	for _, p := range g.protected {
		if path == p || strings.HasPrefix(path, p+"/") {
			return Protected
		}
	}
	return Public
}

// Check decides whether path may render for the current session.
func (g *Guard) Check(path string) Decision {
	if g.AccessFor(path) == Public || g.session.IsAuthenticated() {
		return Decision{Render: true}
	}
	return Decision{RedirectTo: PathLogin}
}

// Middleware redirects unauthenticated requests for protected routes to the login page.
func (g *Guard) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := g.Check(c.Path())
		if !d.Render {
			return c.Redirect(d.RedirectTo, fiber.StatusFound)
		}
		return c.Next()
	}
}

// normalize folds path the way the router matches it: routes are
// case-insensitive and ignore a trailing slash.
func normalize(p string) string {
	if p == "" {
		return PathHome
	}
	return path.Clean(strings.ToLower(p))
}
