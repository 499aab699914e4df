package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/service"
)

// UserLister lists accounts for the admin dashboard.
type UserLister interface {
	List(ctx context.Context) ([]model.User, error)
}

// AdminHandler serves the slot overrides and the user list.  Admin booking
// and contact listings reuse BookingHandler and ContactHandler.
type AdminHandler struct {
	Alloc *service.Allocator
	Users UserLister
}

// ListSlots handles GET /v1/admin/slots?date=.  Without a date every
// persisted row is listed.
func (h *AdminHandler) ListSlots(c echo.Context) error {
	var day time.Time
	if q := c.QueryParam("date"); q != "" {
		d, err := h.Alloc.ParseDay(q)
		if err != nil {
			return writeError(c, err)
		}
		day = d
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Alloc.ListSlots(ctx, day)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type releaseReq struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

// ReleaseSlot handles POST /v1/admin/slots/release.  The row is kept and
// can be booked again.
func (h *AdminHandler) ReleaseSlot(c echo.Context) error {
	var req releaseReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	day, err := h.Alloc.ParseDay(req.Date)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	released, err := h.Alloc.Release(ctx, day, strings.TrimSpace(req.StartTime))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// DeleteSlot handles DELETE /v1/admin/slots/:id.
func (h *AdminHandler) DeleteSlot(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid slot id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Alloc.DeleteSlot(ctx, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUsers handles GET /v1/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Users.List(ctx)
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "try_again", "load users failed")
	}
	if out == nil {
		out = []model.User{}
	}
	return c.JSON(http.StatusOK, out)
}
