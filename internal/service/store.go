package service

import (
	"context"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/payment"
)

// SlotStore is the persistent slot collection.  Days are "YYYY-MM-DD"
// keys.  Implementations must enforce one row per (day, start) in
// InsertBooked, returning repository.ErrDuplicateSlot, and apply the
// Mark* updates only when the current is_booked value matches.
type SlotStore interface {
	ListByDate(ctx context.Context, day string) ([]model.Slot, error)
	List(ctx context.Context, day string) ([]model.Slot, error)
	GetByKey(ctx context.Context, day, start string) (model.Slot, error)
	InsertBooked(ctx context.Context, s *model.Slot) error
	MarkBookedIfFree(ctx context.Context, day, start string, userID uint64) (bool, error)
	MarkFree(ctx context.Context, day, start string, holder *uint64) (bool, error)
	Delete(ctx context.Context, id uint64) error
}

// BookingStore persists bookings.  TransitionStatus and SetOrderRef are
// conditional on the current status.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	TransitionStatus(ctx context.Context, id uint64, from, to model.BookingStatus, paymentRef *string) (bool, error)
	SetOrderRef(ctx context.Context, id uint64, ref string) (bool, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	ListAll(ctx context.Context, status model.BookingStatus) ([]model.Booking, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.Booking, error)
}

// PackageReader is the catalog lookup used at checkout.
type PackageReader interface {
	GetByID(ctx context.Context, id uint64) (model.Package, error)
}

// EventPublisher publishes booking events.  Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, key string, v any) error
}

// SignatureChecker verifies signed payment callbacks.
type SignatureChecker interface {
	Verify(orderID, paymentID, signature string) bool
}

// ChargeFetcher re-reads charges and webhook events from the provider.
type ChargeFetcher interface {
	FetchCharge(ctx context.Context, chargeID string) (payment.Charge, error)
	FetchEvent(ctx context.Context, eventID string) (payment.Event, error)
}

// ChargeCreator charges the payer at checkout.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error)
}

// Actor is the authenticated caller as established by the identity layer.
type Actor struct {
	UserID uint64
	Admin  bool
}
