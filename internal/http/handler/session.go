package handler

import (
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"

	"lexdesk/internal/auth"
	"lexdesk/internal/http/middleware"
	"lexdesk/internal/model"
	"lexdesk/internal/session"
)

type redirectResponse struct {
	Redirect string `json:"redirect"`
}

// FormPage returns the state of a credentials form.
//
// @Summary Credentials form state
// @Tags session
// @Produce json
// @Success 200 {object} session.FormState
// @Router /login [get]
// @Router /register [get]
func FormPage(form *session.Form) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(form.State())
	}
}

// Login submits the login form.
//
// @Summary Sign in
// @Tags session
// @Accept json
// @Produce json
// @Param body body model.LoginRequest true "credentials"
// @Success 200 {object} redirectResponse
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 429 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /login [post]
func Login(form *session.Form) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req model.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "email and password are required")
		}

		if err := form.SubmitLogin(c.UserContext(), req); err != nil {
			return submitError(c, form, err)
		}
		return c.JSON(redirectResponse{Redirect: session.DashboardPath})
	}
}

// Register submits the registration form.
//
// @Summary Create an account
// @Tags session
// @Accept json
// @Produce json
// @Param body body model.RegisterRequest true "account"
// @Success 200 {object} redirectResponse
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /register [post]
func Register(form *session.Form) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req model.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.TrimSpace(req.Email)
		if req.Name == "" || req.Email == "" || req.Password == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "name, email and password are required")
		}

		if err := form.SubmitRegister(c.UserContext(), req); err != nil {
			return submitError(c, form, err)
		}
		return c.JSON(redirectResponse{Redirect: session.DashboardPath})
	}
}

// submitError maps a failed submission to a response carrying the form message.
func submitError(c *fiber.Ctx, form *session.Form, err error) error {
	switch {
	case errors.Is(err, session.ErrSubmissionInFlight):
		return writeError(c, fiber.StatusConflict, "SUBMISSION_IN_FLIGHT", "a submission is already in progress")
	case auth.IsRejected(err):
		return writeError(c, fiber.StatusUnauthorized, "AUTH_REJECTED", form.State().Error)
	case errors.Is(err, session.ErrPersist):
		return writeError(c, fiber.StatusInternalServerError, "SESSION_PERSIST_FAILED", form.State().Error)
	default:
		return writeError(c, fiber.StatusBadGateway, "AUTH_UNAVAILABLE", form.State().Error)
	}
}

// Logout ends the session. Logging out twice is fine.
//
// @Summary Sign out
// @Tags session
// @Produce json
// @Success 200 {object} redirectResponse
// @Router /logout [post]
func Logout(store *session.Store, logger *log.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.Logout(c.UserContext()); err != nil {
			logger.Error("logout_storage_failed", "request_id", middleware.RequestIDFrom(c), "error", err)
			return writeError(c, fiber.StatusInternalServerError, "SESSION_CLEAR_FAILED", "could not clear the saved session")
		}
		return c.JSON(redirectResponse{Redirect: session.LoginPath})
	}
}
