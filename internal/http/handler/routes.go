package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"

	"lexdesk/internal/guard"
	"lexdesk/internal/logging"
	"lexdesk/internal/session"
	"lexdesk/internal/upload"
)

// Deps are the collaborators the HTTP shell needs.
type Deps struct {
	// DB is probed by /health; nil when the client storage is a local file.
	DB           Pinger
	Store        *session.Store
	Guard        *guard.Guard
	LoginForm    *session.Form
	RegisterForm *session.Form
	Queue        *upload.Queue
	// APIClient must carry the session transport.
	APIClient  *http.Client
	APIBaseURL string
	// LoginThrottle guards the credential forms; nil disables it.
	LoginThrottle fiber.Handler
	Logger        *log.Logger
}

// RegisterRoutes attaches the navigation surface and the ops endpoints.
// Health probes are registered ahead of the route guard.
func RegisterRoutes(app *fiber.App, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	throttle := d.LoginThrottle
	if throttle == nil {
		throttle = func(c *fiber.Ctx) error { return c.Next() }
	}

	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	app.Use(d.Guard.Middleware())

	app.Get(guard.PathHome, Home(d.Store))
	app.Get(guard.PathLogin, FormPage(d.LoginForm))
	app.Post(guard.PathLogin, throttle, Login(d.LoginForm))
	app.Get(guard.PathRegister, FormPage(d.RegisterForm))
	app.Post(guard.PathRegister, throttle, Register(d.RegisterForm))
	app.Post("/logout", Logout(d.Store, logger))

	app.Get(guard.PathDashboard, Dashboard(d.Queue))
	app.Get(guard.PathAnalyze, Analyze())
	app.Get(guard.PathUpload, ListUploads(d.Queue))
	app.Post(guard.PathUpload, UploadFiles(d.Queue))
	app.Delete(guard.PathUpload+"/:id", DeleteUpload(d.Queue))

	app.All(guard.PathAPI+"/*", APIProxy(d.APIClient, d.APIBaseURL, logger))
}
