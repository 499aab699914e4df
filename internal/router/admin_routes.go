package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
)

// RegisterAdmin registers the dashboard endpoints under /v1/admin.  All
// routes require the admin role.
func RegisterAdmin(e *echo.Echo, h Handlers) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(h.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Slots ----
	g.GET("/slots", h.Admin.ListSlots)
	g.POST("/slots/release", h.Admin.ReleaseSlot)
	g.DELETE("/slots/:id", h.Admin.DeleteSlot)

	// ---- Bookings, users, messages ----
	g.GET("/bookings", h.Bookings.List)
	g.POST("/bookings/:id/cancel", h.Bookings.Cancel)
	g.GET("/users", h.Admin.ListUsers)
	g.GET("/contacts", h.Contact.List)

	// ---- Catalog ----
	g.POST("/packages", h.Catalog.CreatePackage)
	g.PUT("/packages/:id", h.Catalog.UpdatePackage)
	g.DELETE("/packages/:id", h.Catalog.DeletePackage)
	g.POST("/gallery", h.Catalog.CreateGalleryItem)
	g.DELETE("/gallery/:id", h.Catalog.DeleteGalleryItem)
	g.POST("/upload", h.Catalog.Upload)
}
