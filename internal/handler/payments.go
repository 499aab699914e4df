package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/service"
)

// PaymentHandler turns provider confirmations into booking transitions.
type PaymentHandler struct {
	Life *service.Lifecycle
}

func NewPaymentHandler(l *service.Lifecycle) *PaymentHandler { return &PaymentHandler{Life: l} }

type verifyReq struct {
	BookingID uint64 `json:"booking_id"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// Verify handles POST /v1/payments/verify, the signed client callback.
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return badRequest(c, "order_id, payment_id and signature are required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Life.Confirm(ctx, req.BookingID, service.Proof{
		OrderID:   strings.TrimSpace(req.OrderID),
		PaymentID: strings.TrimSpace(req.PaymentID),
		Signature: strings.TrimSpace(req.Signature),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Confirm handles GET /v1/payments/confirm?booking_id=&charge_id=.  The
// charge is fetched from the provider rather than trusted from the query.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	id, err := strconv.ParseUint(c.QueryParam("booking_id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "booking_id is required")
	}
	charge := strings.TrimSpace(c.QueryParam("charge_id"))
	if charge == "" {
		return badRequest(c, "charge_id is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Life.Confirm(ctx, id, service.Proof{ChargeID: charge})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type webhookReq struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Webhook handles POST /v1/payments/webhook.  Only the event id is read
// from the body; the event itself is re-fetched from the provider.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	var req webhookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Life.HandleEvent(ctx, strings.TrimSpace(req.ID))
	if err != nil {
		return writeError(c, err)
	}
	if b == nil {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true, "booking": b})
}
