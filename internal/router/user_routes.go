package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
)

// RegisterUser registers the signed-in booking endpoints under /v1.
// Admins may use them too; the handlers widen visibility for the admin
// role.
func RegisterUser(e *echo.Echo, h Handlers) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(h.JWTSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("/slots/book", h.Slots.Book, h.rateLimit()...)
	g.POST("/checkout", h.Bookings.Checkout, h.rateLimit()...)

	g.GET("/bookings", h.Bookings.List)
	g.GET("/bookings/:id", h.Bookings.Get)
	g.POST("/bookings/:id/cancel", h.Bookings.Cancel)
}
