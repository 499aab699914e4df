package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/service"
)

const requestTimeout = 5 * time.Second

// errorBody is the shape of every error response.  Code lets the client
// tell a taken slot apart from a transient failure.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, errorBody{Error: msg, Code: code})
}

func badRequest(c echo.Context, msg string) error {
	return fail(c, http.StatusBadRequest, "validation_error", msg)
}

// writeError maps service errors onto HTTP responses.
func writeError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return fail(c, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, service.ErrValidation):
		return fail(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return fail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrForbidden):
		return fail(c, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, service.ErrSlotAlreadyBooked):
		return fail(c, http.StatusConflict, "slot_taken", "this slot is no longer available, please pick another time")
	case errors.Is(err, service.ErrInvalidSignature):
		return fail(c, http.StatusBadRequest, "invalid_signature", "payment confirmation could not be verified")
	case errors.Is(err, service.ErrInvalidTransition):
		return fail(c, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, service.ErrPaymentPending):
		return fail(c, http.StatusAccepted, "payment_pending", err.Error())
	case errors.Is(err, service.ErrPaymentFailed):
		return fail(c, http.StatusPaymentRequired, "payment_failed", err.Error())
	case errors.Is(err, service.ErrOutcomeUnknown):
		return fail(c, http.StatusServiceUnavailable, "outcome_unknown", "the reservation may or may not have been made, please refresh availability")
	case errors.Is(err, service.ErrStoreUnavailable):
		return fail(c, http.StatusServiceUnavailable, "try_again", "something went wrong, please try again")
	}
	c.Logger().Errorf("unhandled error: %v", err)
	return fail(c, http.StatusInternalServerError, "internal", "internal error")
}

// getUserID returns the authenticated caller id.
func getUserID(c echo.Context) (uint64, bool) {
	return middleware.UserID(c)
}

func actor(c echo.Context) service.Actor {
	id, _ := middleware.UserID(c)
	return service.Actor{UserID: id, Admin: middleware.Role(c) == model.RoleAdmin}
}

func unauthorized(c echo.Context) error {
	return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
}

func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
