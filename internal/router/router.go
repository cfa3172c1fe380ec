package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/handler"
	"github.com/iliyamo/event-checkin/internal/middleware"
	"github.com/iliyamo/event-checkin/internal/model"
)

// Handlers bundles everything the API serves.
type Handlers struct {
	DB      handler.Pinger
	Webhook *handler.WebhookHandler
	Auth    *handler.AuthHandler
	CheckIn *handler.CheckInHandler
	Events  *handler.EventHandler
}

// Guards are the shared middleware applied to routes.  A nil limiter or
// Cache is a no-op.
type Guards struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc // webhook and login
	ScanLimit echo.MiddlewareFunc // check-in, per staff member
	Cache     echo.MiddlewareFunc
}

func orPass(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}

// RegisterRoutes registers non-authenticated routes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// Register wires every route.  The webhook is unauthenticated because the
// provider cannot sign its calls; it is only rate limited.  Everything
// under /v1 except login needs a STAFF or ADMIN token.
func Register(e *echo.Echo, h Handlers, g Guards) {
	limit := orPass(g.RateLimit)
	scanLimit := orPass(g.ScanLimit)
	cache := orPass(g.Cache)

	RegisterRoutes(e, h.DB)
	e.POST("/webhooks/submissions", h.Webhook.Submit, limit)
	e.POST("/v1/auth/login", h.Auth.Login, limit)

	v1 := e.Group("/v1", middleware.JWTAuth(g.JWTSecret), middleware.RequireRole(model.RoleStaff, model.RoleAdmin))
	v1.GET("/me", h.Auth.Me)

	v1.GET("/checkin/search", h.CheckIn.Search)
	v1.GET("/checkin/lookup", h.CheckIn.Lookup)
	v1.POST("/checkin", h.CheckIn.CheckIn, scanLimit)

	v1.GET("/events", h.Events.List, cache)
	v1.GET("/events/:id/stats", h.Events.Stats)
	v1.POST("/events/sync", h.Events.Sync, middleware.RequireRole(model.RoleAdmin))
}
