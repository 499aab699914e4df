// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/studio-booking/internal/model"
)

// Routing keys of the booking topic exchange.
const (
	KeyBookingConfirmed = "booking.confirmed"
	KeyBookingCancelled = "booking.cancelled"
)

// BookingEvent is published when a booking is confirmed or cancelled.
// It contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingEvent struct {
	EventID      string `json:"event_id"`
	Kind         string `json:"kind"`
	BookingID    uint64 `json:"booking_id"`
	UserID       uint64 `json:"user_id"`
	PackageID    uint64 `json:"package_id"`
	PackageTitle string `json:"package_title"`
	SessionDate  string `json:"session_date"`
	SessionStart string `json:"session_start"`
	SessionEnd   string `json:"session_end"`
	PriceCents   uint32 `json:"price_cents"`
	PaymentRef   string `json:"payment_ref,omitempty"`
	Reason       string `json:"reason,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

// NewBookingEvent builds an event of kind (a routing key) for b.
func NewBookingEvent(kind string, b model.Booking, reason string) BookingEvent {
	ev := BookingEvent{
		EventID:      uuid.NewString(),
		Kind:         kind,
		BookingID:    b.ID,
		UserID:       b.UserID,
		PackageID:    b.PackageID,
		PackageTitle: b.PackageTitle,
		SessionDate:  b.SessionDate.Format(model.DayLayout),
		SessionStart: b.SessionStart,
		SessionEnd:   b.SessionEnd,
		PriceCents:   b.PriceCents,
		Reason:       reason,
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if b.PaymentRef != nil {
		ev.PaymentRef = *b.PaymentRef
	}
	return ev
}
