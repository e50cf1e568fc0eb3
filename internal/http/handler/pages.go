package handler

import (
	"github.com/gofiber/fiber/v2"

	"lexdesk/internal/guard"
	"lexdesk/internal/session"
	"lexdesk/internal/upload"
)

type homeResponse struct {
	App     string        `json:"app"`
	Session session.State `json:"session"`
	Links   []string      `json:"links"`
}

// Home is the public landing view.
//
// @Summary Landing view
// @Tags views
// @Produce json
// @Success 200 {object} homeResponse
// @Router / [get]
func Home(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := store.Snapshot()
		links := []string{guard.PathLogin, guard.PathRegister}
		if st.Authenticated {
			links = []string{guard.PathDashboard, guard.PathUpload, guard.PathAnalyze}
		}
		return c.JSON(homeResponse{App: "lexdesk", Session: st, Links: links})
	}
}

type dashboardResponse struct {
	Uploads upload.Stats `json:"uploads"`
}

// Dashboard summarizes the upload queue.
//
// @Summary Dashboard view
// @Tags views
// @Produce json
// @Success 200 {object} dashboardResponse
// @Router /dashboard [get]
func Dashboard(queue *upload.Queue) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(dashboardResponse{Uploads: queue.Stats()})
	}
}

type analysisItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Analyze lists document analyses. Analysis runs on the backend; the local
// view has nothing to show until results arrive through /api.
//
// @Summary Analysis view
// @Tags views
// @Produce json
// @Success 200 {object} map[string][]analysisItem
// @Router /analyze [get]
func Analyze() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"analyses": []analysisItem{}})
	}
}
