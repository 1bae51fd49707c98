package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/quill-go-api/internal/config"
	"github.com/noah-isme/quill-go-api/internal/handler"
	"github.com/noah-isme/quill-go-api/internal/middleware"
	"github.com/noah-isme/quill-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler  *handler.SessionHandler
	TeacherHandler  *handler.TeacherHandler
	TaskHandler     *handler.TaskHandler
	RealtimeHandler *handler.RealtimeHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Student flow: no authentication, students are session-scoped guests.
	// Joins are rate limited per IP since the endpoint is open.
	if deps.SessionHandler != nil {
		session := api.Group("/session", middleware.RateLimit("session", 120, time.Minute))
		deps.SessionHandler.Register(session)

		if deps.RealtimeHandler != nil {
			deps.RealtimeHandler.RegisterStudent(session)
		}
	}

	// Teacher flow behind JWT and a teacher role check.
	teacher := api.Group("/teacher", jwtMiddleware, middleware.RequireRole("teacher", "admin"))
	if deps.TeacherHandler != nil {
		deps.TeacherHandler.Register(teacher)
	}
	if deps.TaskHandler != nil {
		deps.TaskHandler.Register(teacher)
	}
	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.RegisterTeacher(teacher)
	}
}
