package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/chiefnavajo/aimoviez-sub005/internal/handler"
	"github.com/chiefnavajo/aimoviez-sub005/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Vote   *handler.VoteHandler
	Admin  *handler.AdminHandler
	Health *handler.HealthHandler
}

// Setup configures the middleware stack and all API routes on the given
// Fiber app.
func Setup(app *fiber.App, h *Handlers, corsOrigins, adminKey string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(middleware.NewCORS(corsOrigins))
	app.Use(handler.MetricsMiddleware())

	// Probes and metrics (before API group, no auth needed)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	api := app.Group("/api")

	// Vote routes, each edge-limited separately
	api.Get("/vote", h.Vote.Feed, middleware.NewFeedRateLimiter().Handler())
	api.Post("/vote", h.Vote.Submit, middleware.NewVoteRateLimiter().Handler())
	api.Delete("/vote", h.Vote.Delete, middleware.NewRevokeRateLimiter().Handler())

	// Admin routes behind the key guard
	admin := api.Group("/admin",
		middleware.NewAdminGuard(adminKey),
		middleware.NewAdminRateLimiter().Handler())
	admin.Post("/slots/:slotId/winner", h.Admin.AssignWinner)
	admin.Post("/slots/:slotId/reopen", h.Admin.ReopenSlot)
	admin.Post("/clips/bulk", h.Admin.BulkClips)
}
