package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/studio-booking/internal/calendar"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/payment"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Lifecycle drives a booking from checkout through payment confirmation
// or cancellation.  Every status change is a conditional update on the
// previous status, so repeated provider callbacks change state and
// publish an event at most once.
type Lifecycle struct {
	alloc    *Allocator
	bookings BookingStore
	packages PackageReader
	verifier SignatureChecker
	charges  ChargeFetcher
	payments ChargeCreator
	events   EventPublisher
	currency string
	returnTo string
	log      *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// DefaultCurrency is the ISO 4217 code package prices are charged in.
const DefaultCurrency = "thb"

// LifecycleDeps bundles the collaborators of a Lifecycle.  Verifier,
// Charges, Payments and Events are optional.  Currency defaults to
// DefaultCurrency; ReturnURI is where the provider sends the payer after
// an offsite or 3-D Secure step.
type LifecycleDeps struct {
	Allocator *Allocator
	Bookings  BookingStore
	Packages  PackageReader
	Verifier  SignatureChecker
	Charges   ChargeFetcher
	Payments  ChargeCreator
	Events    EventPublisher
	Currency  string
	ReturnURI string
	Logger    *slog.Logger
}

func NewLifecycle(d LifecycleDeps) *Lifecycle {
	if d.Allocator == nil || d.Bookings == nil || d.Packages == nil {
		panic("nil dependency passed to NewLifecycle")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := strings.ToLower(strings.TrimSpace(d.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Lifecycle{
		alloc:    d.Allocator,
		bookings: d.Bookings,
		packages: d.Packages,
		verifier: d.Verifier,
		charges:  d.Charges,
		payments: d.Payments,
		events:   d.Events,
		currency: currency,
		returnTo: d.ReturnURI,
		log:      logger,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

// CheckoutRequest starts a booking for a package in one window.
type CheckoutRequest struct {
	UserID    uint64
	PackageID uint64
	Date      time.Time
	StartTime string
	Notes     string
	// PaymentToken, when set, is charged right away for the package price.
	PaymentToken string
}

// CheckoutResult is the pending (or, for an instantly paid charge,
// confirmed) booking and the charge created for it, if any.
type CheckoutResult struct {
	Booking model.Booking
	Charge  *payment.Charge
}

// Checkout reserves the window and writes a pending booking carrying the
// package title and price as they are now, plus a fresh order reference
// that signed payment callbacks must name.  If the booking cannot be
// written the reservation is given back.  With a payment token the
// package price is charged; a declined charge cancels the booking.
func (l *Lifecycle) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	if req.PackageID == 0 {
		return CheckoutResult{}, invalid("package_id", "is required")
	}
	req.PaymentToken = strings.TrimSpace(req.PaymentToken)
	if req.PaymentToken != "" && l.payments == nil {
		return CheckoutResult{}, invalid("payment_token", "card payments are not configured")
	}
	ctx, span := l.tracer.Start(ctx, "lifecycle.Checkout", trace.WithAttributes(attribute.Int64("package.id", int64(req.PackageID))))
	defer span.End()

	pkg, err := l.packages.GetByID(ctx, req.PackageID)
	if err != nil {
		if errors.Is(err, repository.ErrPackageNotFound) {
			return CheckoutResult{}, fmt.Errorf("%w: package %d", ErrNotFound, req.PackageID)
		}
		return CheckoutResult{}, readErr(err)
	}

	slot, err := l.alloc.Reserve(ctx, ReserveRequest{Date: req.Date, StartTime: req.StartTime, UserID: req.UserID})
	if err != nil {
		return CheckoutResult{}, err
	}

	b := model.Booking{
		UserID:       req.UserID,
		PackageID:    pkg.ID,
		SlotID:       slot.ID,
		PackageTitle: pkg.Name,
		PriceCents:   pkg.PriceCents,
		SessionDate:  slot.Date,
		SessionStart: slot.StartTime,
		SessionEnd:   slot.EndTime,
		Status:       model.BookingPending,
		Notes:        strings.TrimSpace(req.Notes),
		OrderRef:     newOrderRef(),
	}
	if err := l.bookings.Create(ctx, &b); err != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, rerr := l.alloc.releaseHeld(rctx, slot.Date, slot.StartTime, req.UserID); rerr != nil {
			l.log.Error("checkout: booking write failed and slot is still held",
				"date", calendar.Key(slot.Date), "start", slot.StartTime, "err", rerr)
		}
		return CheckoutResult{}, writeErr(ctx, err)
	}
	l.log.Info("checkout: pending booking created", "booking_id", b.ID, "user_id", b.UserID, "package_id", b.PackageID)
	if req.PaymentToken == "" {
		return CheckoutResult{Booking: b}, nil
	}
	return l.charge(ctx, b, req.PaymentToken)
}

func newOrderRef() string {
	return "ord_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// charge bills b through the provider and records the charge id as the
// booking's order reference.
func (l *Lifecycle) charge(ctx context.Context, b model.Booking, token string) (CheckoutResult, error) {
	ch, err := l.payments.CreateCharge(ctx, payment.ChargeRequest{
		BookingID:   b.ID,
		OrderRef:    b.OrderRef,
		AmountCents: int64(b.PriceCents),
		Currency:    l.currency,
		Token:       token,
		ReturnURI:   l.returnTo,
	})
	if err != nil || ch.Status == "failed" {
		if err == nil {
			err = fmt.Errorf("charge %s declined", ch.ID)
		}
		l.log.Warn("checkout: charge failed", "booking_id", b.ID, "err", err)
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, cerr := l.cancel(cctx, b, "payment failed"); cerr != nil {
			l.log.Error("checkout: cancel after failed charge", "booking_id", b.ID, "err", cerr)
		}
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	if ok, err := l.bookings.SetOrderRef(ctx, b.ID, ch.ID); err != nil {
		l.log.Error("checkout: charge created but not recorded", "booking_id", b.ID, "charge_id", ch.ID, "err", err)
	} else if ok {
		b.OrderRef = ch.ID
	}
	res := CheckoutResult{Booking: b, Charge: &ch}
	if !ch.Paid {
		return res, nil
	}
	if err := l.checkCharge(b, ch); err != nil {
		return res, err
	}
	if res.Booking, err = l.markConfirmed(ctx, b, ch.ID); err != nil {
		return res, err
	}
	return res, nil
}

// Proof is the evidence of payment for Confirm.  Either the signed
// callback triple or a provider charge id is set.
type Proof struct {
	OrderID   string
	PaymentID string
	Signature string
	ChargeID  string
}

// Confirm validates proof and moves a pending booking to confirmed.
// Confirming an already confirmed booking returns it unchanged; confirming
// a cancelled one fails with ErrInvalidTransition.  A rejected proof
// leaves the booking pending.
func (l *Lifecycle) Confirm(ctx context.Context, bookingID uint64, proof Proof) (model.Booking, error) {
	ctx, span := l.tracer.Start(ctx, "lifecycle.Confirm", trace.WithAttributes(attribute.Int64("booking.id", int64(bookingID))))
	defer span.End()

	b, err := l.load(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	switch b.Status {
	case model.BookingConfirmed, model.BookingCompleted:
		return b, nil
	case model.BookingCancelled:
		return b, ErrInvalidTransition
	}

	ref, err := l.verify(ctx, b, proof)
	if err != nil {
		if !errors.Is(err, ErrPaymentPending) {
			l.log.Warn("confirm: payment proof rejected", "booking_id", b.ID, "err", err)
			span.RecordError(err)
		}
		return b, err
	}

	return l.markConfirmed(ctx, b, ref)
}

// markConfirmed moves b from pending to confirmed with payment reference
// ref.  Losing the race to another confirmation is not an error.
func (l *Lifecycle) markConfirmed(ctx context.Context, b model.Booking, ref string) (model.Booking, error) {
	changed, err := l.bookings.TransitionStatus(ctx, b.ID, model.BookingPending, model.BookingConfirmed, &ref)
	if err != nil {
		return b, writeErr(ctx, err)
	}
	if b, err = l.load(ctx, b.ID); err != nil {
		return model.Booking{}, err
	}
	if !changed {
		// Someone else moved the booking first.
		if b.Status == model.BookingCancelled {
			return b, ErrInvalidTransition
		}
		return b, nil
	}
	l.log.Info("booking confirmed", "booking_id", b.ID, "payment_ref", ref)
	l.publish(ctx, queue.KeyBookingConfirmed, b, "")
	return b, nil
}

func (l *Lifecycle) verify(ctx context.Context, b model.Booking, p Proof) (string, error) {
	switch {
	case p.Signature != "":
		if l.verifier == nil || !l.verifier.Verify(p.OrderID, p.PaymentID, p.Signature) {
			return "", ErrInvalidSignature
		}
		// A valid signature for some other order must not confirm b.
		if b.OrderRef == "" || p.OrderID != b.OrderRef {
			return "", fmt.Errorf("%w: order %q was not issued for booking %d", ErrInvalidSignature, p.OrderID, b.ID)
		}
		return p.PaymentID, nil
	case p.ChargeID != "":
		if l.charges == nil {
			return "", invalid("charge_id", "charge polling is not configured")
		}
		ch, err := l.charges.FetchCharge(ctx, p.ChargeID)
		if err != nil {
			if errors.Is(err, payment.ErrChargeNotFound) {
				return "", fmt.Errorf("%w: charge %s", ErrNotFound, p.ChargeID)
			}
			return "", readErr(err)
		}
		if err := l.checkCharge(b, ch); err != nil {
			return "", err
		}
		if !ch.Paid {
			return "", fmt.Errorf("%w: charge status %s", ErrPaymentPending, ch.Status)
		}
		return ch.ID, nil
	}
	return "", invalid("proof", "signature or charge_id is required")
}

// checkCharge reports whether ch pays for b: it must name the booking in
// its metadata and carry the booking's price in the configured currency.
func (l *Lifecycle) checkCharge(b model.Booking, ch payment.Charge) error {
	switch {
	case ch.BookingID != b.ID:
		return fmt.Errorf("%w: charge belongs to booking %d", ErrInvalidSignature, ch.BookingID)
	case ch.AmountCents != int64(b.PriceCents):
		return fmt.Errorf("%w: charge amount %d, booking price %d", ErrInvalidSignature, ch.AmountCents, b.PriceCents)
	case !strings.EqualFold(ch.Currency, l.currency):
		return fmt.Errorf("%w: charge currency %q, want %q", ErrInvalidSignature, ch.Currency, l.currency)
	}
	return nil
}

// HandleEvent re-fetches a provider webhook event by id and confirms the
// booking named by a completed charge.  Events of other kinds, and charges
// not linked to a booking, are acknowledged and ignored.
func (l *Lifecycle) HandleEvent(ctx context.Context, eventID string) (*model.Booking, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, invalid("id", "is required")
	}
	if l.charges == nil {
		return nil, invalid("id", "payment webhooks are not configured")
	}
	ev, err := l.charges.FetchEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, payment.ErrChargeNotFound) {
			return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
		}
		return nil, readErr(err)
	}
	if ev.Key != "charge.complete" || ev.Charge == nil || ev.Charge.BookingID == 0 {
		l.log.Info("webhook: event ignored", "event_id", ev.ID, "key", ev.Key)
		return nil, nil
	}
	if !ev.Charge.Paid {
		l.log.Info("webhook: charge not successful", "event_id", ev.ID, "charge_id", ev.Charge.ID, "status", ev.Charge.Status)
		return nil, nil
	}
	b, err := l.Confirm(ctx, ev.Charge.BookingID, Proof{ChargeID: ev.Charge.ID})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Cancel cancels a pending booking and gives its slot back.  Only the
// owner or an admin may cancel.  A booking that is already confirmed,
// completed or cancelled is returned unchanged.
func (l *Lifecycle) Cancel(ctx context.Context, bookingID uint64, actor Actor) (model.Booking, error) {
	b, err := l.load(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if !actor.Admin && b.UserID != actor.UserID {
		return model.Booking{}, ErrForbidden
	}
	return l.cancel(ctx, b, "cancelled by user")
}

func (l *Lifecycle) cancel(ctx context.Context, b model.Booking, reason string) (model.Booking, error) {
	if b.Status.Terminal() {
		return b, nil
	}
	changed, err := l.bookings.TransitionStatus(ctx, b.ID, model.BookingPending, model.BookingCancelled, nil)
	if err != nil {
		return b, writeErr(ctx, err)
	}
	fresh, err := l.load(ctx, b.ID)
	if err != nil {
		return b, err
	}
	if !changed {
		return fresh, nil
	}
	if _, err := l.alloc.releaseHeld(ctx, b.SessionDate, b.SessionStart, b.UserID); err != nil {
		l.log.Error("cancel: slot release failed", "booking_id", b.ID, "err", err)
	}
	l.log.Info("booking cancelled", "booking_id", b.ID, "reason", reason)
	l.publish(ctx, queue.KeyBookingCancelled, fresh, reason)
	return fresh, nil
}

// Get returns a booking visible to actor.
func (l *Lifecycle) Get(ctx context.Context, bookingID uint64, actor Actor) (model.Booking, error) {
	b, err := l.load(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if !actor.Admin && b.UserID != actor.UserID {
		// Hide the existence of other users' bookings.
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

// List returns the actor's bookings, or every booking for an admin,
// optionally filtered by status.
func (l *Lifecycle) List(ctx context.Context, actor Actor, status model.BookingStatus) ([]model.Booking, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("status", "unknown status "+string(status))
	}
	var (
		out []model.Booking
		err error
	)
	if actor.Admin {
		out, err = l.bookings.ListAll(ctx, status)
	} else {
		out, err = l.bookings.ListByUser(ctx, actor.UserID)
		if err == nil && status != "" {
			filtered := out[:0]
			for _, b := range out {
				if b.Status == status {
					filtered = append(filtered, b)
				}
			}
			out = filtered
		}
	}
	if err != nil {
		return nil, readErr(err)
	}
	return out, nil
}

func (l *Lifecycle) load(ctx context.Context, id uint64) (model.Booking, error) {
	if id == 0 {
		return model.Booking{}, invalid("booking_id", "is required")
	}
	b, err := l.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return model.Booking{}, fmt.Errorf("%w: booking %d", ErrNotFound, id)
		}
		return model.Booking{}, readErr(err)
	}
	return b, nil
}

func (l *Lifecycle) publish(ctx context.Context, key string, b model.Booking, reason string) {
	if l.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := l.events.Publish(pctx, key, queue.NewBookingEvent(key, b, reason)); err != nil {
		l.log.Warn("booking event publish failed", "key", key, "booking_id", b.ID, "err", err)
	}
}
