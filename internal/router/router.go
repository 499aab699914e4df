package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
)

// Handlers are the route targets.  RateLimit and Cache may be nil.
type Handlers struct {
	Auth     *handler.AuthHandler
	Slots    *handler.SlotHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler
	Catalog  *handler.CatalogHandler
	Contact  *handler.ContactHandler
	Admin    *handler.AdminHandler
	Health   echo.HandlerFunc

	JWTSecret string
	UploadDir string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

func (h Handlers) rateLimit() []echo.MiddlewareFunc {
	if h.RateLimit == nil {
		return nil
	}
	return []echo.MiddlewareFunc{h.RateLimit}
}

func (h Handlers) cache() []echo.MiddlewareFunc {
	if h.Cache == nil {
		return nil
	}
	return []echo.MiddlewareFunc{h.Cache}
}

// Register wires every route group onto e.
func Register(e *echo.Echo, h Handlers) {
	RegisterRoutes(e, h)
	RegisterAuth(e, h)
	RegisterPublic(e, h)
	RegisterUser(e, h)
	RegisterAdmin(e, h)
}

// RegisterRoutes registers the health check and the uploaded media.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health)
	if h.UploadDir != "" {
		e.Static("/uploads", h.UploadDir)
	}
}

// RegisterAuth registers the session endpoints.  Register, login and
// refresh are rate limited.
func RegisterAuth(e *echo.Echo, h Handlers) {
	g := e.Group("/v1/auth", h.rateLimit()...)
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)
	g.POST("/refresh", h.Auth.Refresh)
	g.POST("/logout", h.Auth.Logout)

	e.GET("/v1/me", h.Auth.Me, middleware.JWTAuth(h.JWTSecret), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
}

// RegisterPublic registers the unauthenticated endpoints.  Catalog reads
// go through the response cache.
func RegisterPublic(e *echo.Echo, h Handlers) {
	g := e.Group("/v1")
	g.GET("/slots", h.Slots.Availability)

	cached := e.Group("/v1", h.cache()...)
	cached.GET("/packages", h.Catalog.ListPackages)
	cached.GET("/packages/:id", h.Catalog.GetPackage)
	cached.GET("/gallery", h.Catalog.ListGallery)

	g.POST("/contact", h.Contact.Submit)
	g.POST("/chat", h.Contact.Chat)

	// Provider callbacks carry no session; each re-fetches or verifies its
	// proof before touching a booking.
	g.POST("/payments/verify", h.Payments.Verify)
	g.GET("/payments/confirm", h.Payments.Confirm)
	g.POST("/payments/webhook", h.Payments.Webhook)
}
