package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"

	"lexdesk/internal/http/middleware"
	"lexdesk/internal/resilience"
)

const maxProxyResponseBytes = 32 << 20

// forwardedHeaders are copied from the local request to the backend.
var forwardedHeaders = []string{fiber.HeaderContentType, fiber.HeaderAccept, middleware.RequestIDHeader}

// APIProxy forwards /api/* to the analysis backend through client, which is
// expected to attach the session token and report 401 answers to the session.
// The backend status and body are returned unchanged.
//
// @Summary Backend passthrough
// @Tags api
// @Param path path string true "backend path"
// @Success 200
// @Failure 401
// @Failure 502 {object} errorPayload
// @Router /api/{path} [get]
func APIProxy(client *http.Client, baseURL string, logger *log.Logger) fiber.Handler {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(c *fiber.Ctx) error {
		target := baseURL + "/" + c.Params("*")
		if q := c.Context().QueryArgs().QueryString(); len(q) > 0 {
			target += "?" + string(q)
		}

		req, err := http.NewRequestWithContext(c.UserContext(), c.Method(), target, bytes.NewReader(c.Body()))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "bad request")
		}
		for _, h := range forwardedHeaders {
			if v := c.Get(h); v != "" {
				req.Header.Set(h, v)
			}
		}
		if req.Header.Get(middleware.RequestIDHeader) == "" {
			req.Header.Set(middleware.RequestIDHeader, middleware.RequestIDFrom(c))
		}

		resp, err := client.Do(req)
		if resilience.IsOpen(err) {
			return writeError(c, fiber.StatusServiceUnavailable, "BACKEND_CIRCUIT_OPEN", "analysis backend is failing, try again shortly")
		}
		if err != nil {
			logger.Error("api_proxy_failed", "request_id", middleware.RequestIDFrom(c), "target", target, "error", err)
			return writeError(c, fiber.StatusBadGateway, "BACKEND_UNAVAILABLE", "analysis backend unavailable")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyResponseBytes))
		if err != nil {
			return writeError(c, fiber.StatusBadGateway, "BACKEND_UNAVAILABLE", "analysis backend unavailable")
		}
		if ct := resp.Header.Get(fiber.HeaderContentType); ct != "" {
			c.Set(fiber.HeaderContentType, ct)
		}
		return c.Status(resp.StatusCode).Send(body)
	}
}
