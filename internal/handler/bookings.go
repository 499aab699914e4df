package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/service"
)

// BookingHandler serves checkout and the booking list, detail and cancel
// endpoints for users and admins.
type BookingHandler struct {
	Life  *service.Lifecycle
	Alloc *service.Allocator
}

func NewBookingHandler(l *service.Lifecycle, a *service.Allocator) *BookingHandler {
	return &BookingHandler{Life: l, Alloc: a}
}

type checkoutReq struct {
	PackageID    uint64 `json:"package_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	Notes        string `json:"notes"`
	PaymentToken string `json:"payment_token"`
}

// checkoutResp is the booking plus, when a token was charged, the charge
// state and where to send the payer next.
type checkoutResp struct {
	model.Booking
	ChargeID     string `json:"charge_id,omitempty"`
	ChargeStatus string `json:"charge_status,omitempty"`
	AuthorizeURI string `json:"authorize_uri,omitempty"`
}

// Checkout handles POST /v1/checkout.  The response is the pending booking
// with the order_ref a signed payment callback must name.  Given a
// payment_token the price is charged at once.
func (h *BookingHandler) Checkout(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	day, err := h.Alloc.ParseDay(req.Date)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Life.Checkout(ctx, service.CheckoutRequest{
		UserID:       uid,
		PackageID:    req.PackageID,
		Date:         day,
		StartTime:    strings.TrimSpace(req.StartTime),
		Notes:        req.Notes,
		PaymentToken: req.PaymentToken,
	})
	if err != nil {
		return writeError(c, err)
	}
	out := checkoutResp{Booking: res.Booking}
	if ch := res.Charge; ch != nil {
		out.ChargeID, out.ChargeStatus, out.AuthorizeURI = ch.ID, ch.Status, ch.AuthorizeURI
	}
	return c.JSON(http.StatusCreated, out)
}

// List handles GET /v1/bookings and GET /v1/admin/bookings.
func (h *BookingHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Life.List(ctx, actor(c), model.BookingStatus(c.QueryParam("status")))
	if err != nil {
		return writeError(c, err)
	}
	if out == nil {
		out = []model.Booking{}
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Life.Get(ctx, id, actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Life.Cancel(ctx, id, actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
