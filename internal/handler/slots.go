package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/service"
)

// SlotHandler serves availability and the direct slot reservation.
type SlotHandler struct {
	Alloc *service.Allocator
}

func NewSlotHandler(a *service.Allocator) *SlotHandler { return &SlotHandler{Alloc: a} }

// Availability handles GET /v1/slots?date=YYYY-MM-DD.
func (h *SlotHandler) Availability(c echo.Context) error {
	day, err := h.Alloc.ParseDay(c.QueryParam("date"))
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	av, err := h.Alloc.Availability(ctx, day)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}

type bookSlotReq struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Book handles POST /v1/slots/book.  It reserves the window for the caller
// and returns the slot row; no booking is created.
func (h *SlotHandler) Book(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	var req bookSlotReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	day, err := h.Alloc.ParseDay(req.Date)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	slot, err := h.Alloc.Reserve(ctx, service.ReserveRequest{
		Date:      day,
		StartTime: strings.TrimSpace(req.StartTime),
		EndTime:   strings.TrimSpace(req.EndTime),
		UserID:    uid,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, slot)
}
