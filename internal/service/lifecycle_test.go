package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/studio-booking/internal/calendar"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/payment"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository/memstore"
)

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []queue.BookingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	if ev, ok := v.(queue.BookingEvent); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

func (p *recordingPublisher) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.keys {
		if k == key {
			n++
		}
	}
	return n
}

type fakeCharges struct {
	charges map[string]payment.Charge
	events  map[string]payment.Event
	created []payment.ChargeRequest
}

// CreateCharge settles according to the token: tokn_paid succeeds at once,
// tokn_declined fails, tokn_broken errors and anything else is pending.
func (f *fakeCharges) CreateCharge(_ context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	if req.Token == "tokn_broken" {
		return payment.Charge{}, errors.New("provider unreachable")
	}
	f.created = append(f.created, req)
	ch := payment.Charge{
		ID:          "chrg_" + req.Token,
		Status:      "pending",
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		BookingID:   req.BookingID,
	}
	switch req.Token {
	case "tokn_paid":
		ch.Status, ch.Paid = "successful", true
	case "tokn_declined":
		ch.Status = "failed"
	default:
		ch.AuthorizeURI = "https://pay.example/3ds/" + ch.ID
	}
	f.charges[ch.ID] = ch
	return ch, nil
}

func (f *fakeCharges) FetchCharge(_ context.Context, id string) (payment.Charge, error) {
	ch, ok := f.charges[id]
	if !ok {
		return payment.Charge{}, payment.ErrChargeNotFound
	}
	return ch, nil
}

func (f *fakeCharges) FetchEvent(_ context.Context, id string) (payment.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return payment.Event{}, payment.ErrChargeNotFound
	}
	return ev, nil
}

type fixture struct {
	life     *Lifecycle
	alloc    *Allocator
	slots    *memstore.Slots
	bookings *memstore.Bookings
	pkg      model.Package
	events   *recordingPublisher
	charges  *fakeCharges
	signer   *payment.SignatureVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		slots:    memstore.NewSlots(),
		bookings: memstore.NewBookings(),
		events:   &recordingPublisher{},
		charges:  &fakeCharges{charges: map[string]payment.Charge{}, events: map[string]payment.Event{}},
		signer:   payment.NewSignatureVerifier("test-signing-secret"),
	}
	packages := memstore.NewPackages()
	f.pkg = model.Package{Name: "Newborn Classic", Category: "newborn", PriceCents: 15000, Duration: 2, DurationUnit: "hours"}
	if err := packages.Create(context.Background(), &f.pkg); err != nil {
		t.Fatalf("seed package: %v", err)
	}
	f.alloc = NewAllocator(calendar.DefaultRule(), f.slots, nil)
	f.life = NewLifecycle(LifecycleDeps{
		Allocator: f.alloc,
		Bookings:  f.bookings,
		Packages:  packages,
		Verifier:  f.signer,
		Charges:   f.charges,
		Payments:  f.charges,
		Events:    f.events,
	})
	return f
}

func (f *fixture) checkout(t *testing.T, user uint64, start string) model.Booking {
	t.Helper()
	res, err := f.life.Checkout(context.Background(), CheckoutRequest{UserID: user, PackageID: f.pkg.ID, Date: monday, StartTime: start})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if res.Charge != nil {
		t.Fatalf("checkout without token created charge %+v", res.Charge)
	}
	return res.Booking
}

// paid returns a successful charge for b at its full price.
func paid(id string, b model.Booking) payment.Charge {
	return payment.Charge{ID: id, Status: "successful", Paid: true, AmountCents: int64(b.PriceCents), Currency: DefaultCurrency, BookingID: b.ID}
}

func (f *fixture) signed(b model.Booking, paymentID string) Proof {
	return Proof{OrderID: b.OrderRef, PaymentID: paymentID, Signature: f.signer.Sign(b.OrderRef, paymentID)}
}

func (f *fixture) slotBooked(t *testing.T, start string) bool {
	t.Helper()
	s, err := f.slots.GetByKey(context.Background(), "2025-01-06", start)
	if err != nil {
		return false
	}
	return s.IsBooked
}

func TestCheckoutCreatesPendingBooking(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 7, "2:00 PM")
	if b.ID == 0 || b.Status != model.BookingPending || b.SlotID == 0 {
		t.Fatalf("booking = %+v", b)
	}
	if b.PackageTitle != "Newborn Classic" || b.PriceCents != 15000 || b.SessionStart != "2:00 PM" || b.SessionEnd != "3:00 PM" {
		t.Fatalf("snapshot = %+v", b)
	}
	if !f.slotBooked(t, "2:00 PM") {
		t.Fatal("checkout must reserve the slot")
	}
	_, err := f.life.Checkout(context.Background(), CheckoutRequest{UserID: 8, PackageID: f.pkg.ID, Date: monday, StartTime: "2:00 PM"})
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("second checkout err = %v", err)
	}
}

func TestCheckoutUnknownPackage(t *testing.T) {
	f := newFixture(t)
	_, err := f.life.Checkout(context.Background(), CheckoutRequest{UserID: 1, PackageID: 999, Date: monday, StartTime: "9:00 AM"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if f.slotBooked(t, "9:00 AM") {
		t.Fatal("slot reserved for an unknown package")
	}
}

func TestCheckoutReleasesSlotWhenBookingWriteFails(t *testing.T) {
	f := newFixture(t)
	f.bookings.FailCreate = errors.New("disk full")
	_, err := f.life.Checkout(context.Background(), CheckoutRequest{UserID: 1, PackageID: f.pkg.ID, Date: monday, StartTime: "9:00 AM"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if f.slotBooked(t, "9:00 AM") {
		t.Fatal("slot must be released after a failed booking write")
	}
}

func TestConfirmSignatureIsIdempotent(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 1, "9:00 AM")
	proof := f.signed(b, "pay_1")

	for i := 0; i < 2; i++ {
		got, err := f.life.Confirm(context.Background(), b.ID, proof)
		if err != nil {
			t.Fatalf("confirm #%d: %v", i+1, err)
		}
		if got.Status != model.BookingConfirmed || got.PaymentRef == nil || *got.PaymentRef != "pay_1" {
			t.Fatalf("confirm #%d booking = %+v", i+1, got)
		}
	}
	if n := f.events.count(queue.KeyBookingConfirmed); n != 1 {
		t.Fatalf("confirmed events = %d, want 1", n)
	}
	rows, _ := f.slots.ListByDate(context.Background(), "2025-01-06")
	if len(rows) != 1 || !rows[0].IsBooked {
		t.Fatalf("slot rows after confirm = %+v", rows)
	}
}

func TestConfirmConcurrentCallbacksPublishOnce(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 1, "10:00 AM")
	proof := f.signed(b, "p")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.life.Confirm(context.Background(), b.ID, proof); err != nil {
				t.Errorf("Confirm: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := f.events.count(queue.KeyBookingConfirmed); n != 1 {
		t.Fatalf("confirmed events = %d, want 1", n)
	}
}

func TestConfirmRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 1, "9:00 AM")
	_, err := f.life.Confirm(context.Background(), b.ID, Proof{OrderID: b.OrderRef, PaymentID: "p", Signature: f.signer.Sign(b.OrderRef, "other")})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	got, _ := f.bookings.GetByID(context.Background(), b.ID)
	if got.Status != model.BookingPending {
		t.Fatalf("booking status = %s, want pending", got.Status)
	}
	if len(f.events.keys) != 0 {
		t.Fatalf("no event expected, got %v", f.events.keys)
	}
	if _, err := f.life.Confirm(context.Background(), b.ID, Proof{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty proof err = %v", err)
	}
}

func TestConfirmByChargePolling(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 1, "9:00 AM")
	other := f.checkout(t, 2, "10:00 AM")
	pending := paid("chrg_pending", b)
	pending.Status, pending.Paid = "pending", false
	f.charges.charges["chrg_pending"] = pending
	f.charges.charges["chrg_other"] = paid("chrg_other", other)
	f.charges.charges["chrg_ok"] = paid("chrg_ok", b)
	ctx := context.Background()

	if _, err := f.life.Confirm(ctx, b.ID, Proof{ChargeID: "chrg_pending"}); !errors.Is(err, ErrPaymentPending) {
		t.Fatalf("pending charge err = %v", err)
	}
	if _, err := f.life.Confirm(ctx, b.ID, Proof{ChargeID: "chrg_other"}); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("foreign charge err = %v", err)
	}
	if _, err := f.life.Confirm(ctx, b.ID, Proof{ChargeID: "chrg_missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing charge err = %v", err)
	}
	got, err := f.life.Confirm(ctx, b.ID, Proof{ChargeID: "chrg_ok"})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got.Status != model.BookingConfirmed || *got.PaymentRef != "chrg_ok" {
		t.Fatalf("booking = %+v", got)
	}
}

func TestConfirmCancelledBookingFails(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 1, "9:00 AM")
	if _, err := f.life.Cancel(context.Background(), b.ID, Actor{UserID: 1}); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_, err := f.life.Confirm(context.Background(), b.ID, f.signed(b, "p"))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 1, "5:00 PM")
	ctx := context.Background()

	if _, err := f.life.Cancel(ctx, b.ID, Actor{UserID: 2}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign cancel err = %v", err)
	}
	got, err := f.life.Cancel(ctx, b.ID, Actor{UserID: 1})
	if err != nil || got.Status != model.BookingCancelled {
		t.Fatalf("Cancel = %+v, %v", got, err)
	}
	if f.slotBooked(t, "5:00 PM") {
		t.Fatal("cancel must release the slot")
	}
	again, err := f.life.Cancel(ctx, b.ID, Actor{Admin: true})
	if err != nil || again.Status != model.BookingCancelled {
		t.Fatalf("re-cancel = %+v, %v", again, err)
	}
	if n := f.events.count(queue.KeyBookingCancelled); n != 1 {
		t.Fatalf("cancelled events = %d, want 1", n)
	}
	// The window is bookable again.
	f.checkout(t, 3, "5:00 PM")
}

func TestCancelConfirmedIsNoop(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 1, "9:00 AM")
	if _, err := f.life.Confirm(context.Background(), b.ID, f.signed(b, "p")); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	got, err := f.life.Cancel(context.Background(), b.ID, Actor{UserID: 1})
	if err != nil || got.Status != model.BookingConfirmed {
		t.Fatalf("Cancel = %+v, %v", got, err)
	}
	if !f.slotBooked(t, "9:00 AM") {
		t.Fatal("confirmed booking must keep its slot")
	}
}

func TestCancelDoesNotReleaseAnotherHolder(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 1, "9:00 AM")
	ctx := context.Background()
	if _, err := f.alloc.Release(ctx, monday, "9:00 AM"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := f.alloc.Reserve(ctx, ReserveRequest{Date: monday, StartTime: "9:00 AM", UserID: 2}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := f.life.Cancel(ctx, b.ID, Actor{UserID: 1}); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	s, _ := f.slots.GetByKey(ctx, "2025-01-06", "9:00 AM")
	if !s.IsBooked || *s.BookedBy != 2 {
		t.Fatalf("other user's hold was released: %+v", s)
	}
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	stale := f.checkout(t, 1, "9:00 AM")
	fresh := f.checkout(t, 2, "10:00 AM")
	f.bookings.Backdate(stale.ID, time.Hour)

	n, err := f.life.SweepExpired(context.Background(), 30*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("SweepExpired = %d, %v", n, err)
	}
	got, _ := f.bookings.GetByID(context.Background(), stale.ID)
	if got.Status != model.BookingCancelled || f.slotBooked(t, "9:00 AM") {
		t.Fatalf("stale booking = %+v", got)
	}
	kept, _ := f.bookings.GetByID(context.Background(), fresh.ID)
	if kept.Status != model.BookingPending || !f.slotBooked(t, "10:00 AM") {
		t.Fatalf("fresh booking = %+v", kept)
	}
	if n, _ := f.life.SweepExpired(context.Background(), 0); n != 0 {
		t.Fatalf("ttl 0 must disable the sweep, cancelled %d", n)
	}
	if len(f.events.events) != 1 || f.events.events[0].Reason == "" {
		t.Fatalf("events = %+v", f.events.events)
	}
}

func TestHandleEvent(t *testing.T) {
	f := newFixture(t)
	b := f.checkout(t, 1, "9:00 AM")
	ch := paid("chrg_1", b)
	f.charges.charges[ch.ID] = ch
	f.charges.events["evnt_1"] = payment.Event{ID: "evnt_1", Key: "charge.complete", Charge: &ch}
	f.charges.events["evnt_2"] = payment.Event{ID: "evnt_2", Key: "customer.create"}

	if got, err := f.life.HandleEvent(context.Background(), "evnt_2"); err != nil || got != nil {
		t.Fatalf("ignored event = %v, %v", got, err)
	}
	got, err := f.life.HandleEvent(context.Background(), "evnt_1")
	if err != nil || got == nil || got.Status != model.BookingConfirmed {
		t.Fatalf("HandleEvent = %+v, %v", got, err)
	}
	if _, err := f.life.HandleEvent(context.Background(), "evnt_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing event err = %v", err)
	}
}

func TestGetAndListVisibility(t *testing.T) {
	f := newFixture(t)
	mine := f.checkout(t, 1, "9:00 AM")
	f.checkout(t, 2, "10:00 AM")
	ctx := context.Background()

	if _, err := f.life.Get(ctx, mine.ID, Actor{UserID: 2}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign get err = %v", err)
	}
	if _, err := f.life.Get(ctx, mine.ID, Actor{Admin: true}); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	own, _ := f.life.List(ctx, Actor{UserID: 1}, "")
	all, _ := f.life.List(ctx, Actor{Admin: true}, "")
	if len(own) != 1 || len(all) != 2 {
		t.Fatalf("own=%d all=%d", len(own), len(all))
	}
	if _, err := f.life.List(ctx, Actor{UserID: 1}, "paid"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad status err = %v", err)
	}
}

func TestCheckoutIssuesDistinctOrderRefs(t *testing.T) {
	f := newFixture(t)
	a := f.checkout(t, 1, "9:00 AM")
	b := f.checkout(t, 1, "10:00 AM")
	if !strings.HasPrefix(a.OrderRef, "ord_") || a.OrderRef == b.OrderRef {
		t.Fatalf("order refs = %q, %q", a.OrderRef, b.OrderRef)
	}
	stored, _ := f.bookings.GetByID(context.Background(), a.ID)
	if stored.OrderRef != a.OrderRef {
		t.Fatalf("stored order ref = %q, want %q", stored.OrderRef, a.OrderRef)
	}
}

func TestConfirmRejectsSignatureForAnotherOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.checkout(t, 1, "9:00 AM")
	b := f.checkout(t, 2, "10:00 AM")
	proof := f.signed(a, "pay_A")
	if _, err := f.life.Confirm(ctx, a.ID, proof); err != nil {
		t.Fatalf("confirm own booking: %v", err)
	}

	if _, err := f.life.Confirm(ctx, b.ID, proof); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("replayed proof err = %v, want ErrInvalidSignature", err)
	}
	forged := Proof{OrderID: "order_elsewhere", PaymentID: "p", Signature: f.signer.Sign("order_elsewhere", "p")}
	if _, err := f.life.Confirm(ctx, b.ID, forged); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("unknown order err = %v, want ErrInvalidSignature", err)
	}
	got, _ := f.bookings.GetByID(ctx, b.ID)
	if got.Status != model.BookingPending || got.PaymentRef != nil {
		t.Fatalf("booking b = %+v, want untouched pending", got)
	}
	if n := f.events.count(queue.KeyBookingConfirmed); n != 1 {
		t.Fatalf("confirmed events = %d, want 1", n)
	}
}

func TestConfirmRejectsChargeWithWrongAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.checkout(t, 1, "9:00 AM")

	cheap := paid("chrg_cheap", b)
	cheap.AmountCents = 1
	foreign := paid("chrg_usd", b)
	foreign.Currency = "usd"
	f.charges.charges[cheap.ID] = cheap
	f.charges.charges[foreign.ID] = foreign

	for _, id := range []string{cheap.ID, foreign.ID} {
		if _, err := f.life.Confirm(ctx, b.ID, Proof{ChargeID: id}); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s err = %v, want ErrInvalidSignature", id, err)
		}
	}
	got, _ := f.bookings.GetByID(ctx, b.ID)
	if got.Status != model.BookingPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}

	// Provider currency codes are upper case in some payloads.
	exact := paid("chrg_exact", b)
	exact.Currency = "THB"
	f.charges.charges[exact.ID] = exact
	if got, err := f.life.Confirm(ctx, b.ID, Proof{ChargeID: exact.ID}); err != nil || got.Status != model.BookingConfirmed {
		t.Fatalf("full price charge = %+v, %v", got, err)
	}
}

func TestCheckoutWithTokenCreatesCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := CheckoutRequest{UserID: 1, PackageID: f.pkg.ID, Date: monday, StartTime: "9:00 AM", PaymentToken: "tokn_3ds"}

	res, err := f.life.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if res.Charge == nil || res.Charge.AuthorizeURI == "" || res.Booking.Status != model.BookingPending {
		t.Fatalf("result = %+v", res)
	}
	if len(f.charges.created) != 1 {
		t.Fatalf("charges created = %d", len(f.charges.created))
	}
	cr := f.charges.created[0]
	if cr.BookingID != res.Booking.ID || cr.AmountCents != 15000 || cr.Currency != DefaultCurrency || !strings.HasPrefix(cr.OrderRef, "ord_") {
		t.Fatalf("charge request = %+v", cr)
	}
	stored, _ := f.bookings.GetByID(ctx, res.Booking.ID)
	if stored.OrderRef != res.Charge.ID || res.Booking.OrderRef != res.Charge.ID {
		t.Fatalf("order ref = %q / %q, want charge id %q", stored.OrderRef, res.Booking.OrderRef, res.Charge.ID)
	}

	// The payer completes 3-D Secure; polling the charge confirms.
	f.charges.charges[res.Charge.ID] = paid(res.Charge.ID, res.Booking)
	got, err := f.life.Confirm(ctx, res.Booking.ID, Proof{ChargeID: res.Charge.ID})
	if err != nil || got.Status != model.BookingConfirmed {
		t.Fatalf("confirm after 3ds = %+v, %v", got, err)
	}
}

func TestCheckoutWithTokenInstantOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.life.Checkout(ctx, CheckoutRequest{UserID: 1, PackageID: f.pkg.ID, Date: monday, StartTime: "9:00 AM", PaymentToken: "tokn_paid"})
	if err != nil || res.Booking.Status != model.BookingConfirmed {
		t.Fatalf("paid checkout = %+v, %v", res, err)
	}
	if n := f.events.count(queue.KeyBookingConfirmed); n != 1 {
		t.Fatalf("confirmed events = %d, want 1", n)
	}

	for _, token := range []string{"tokn_declined", "tokn_broken"} {
		_, err := f.life.Checkout(ctx, CheckoutRequest{UserID: 2, PackageID: f.pkg.ID, Date: monday, StartTime: "11:00 AM", PaymentToken: token})
		if !errors.Is(err, ErrPaymentFailed) {
			t.Fatalf("%s err = %v, want ErrPaymentFailed", token, err)
		}
		if f.slotBooked(t, "11:00 AM") {
			t.Fatalf("%s: slot must be released after a failed charge", token)
		}
	}
	cancelled, _ := f.bookings.ListAll(ctx, model.BookingCancelled)
	if len(cancelled) != 2 {
		t.Fatalf("cancelled bookings = %d, want 2", len(cancelled))
	}
}

func TestCheckoutTokenWithoutGateway(t *testing.T) {
	f := newFixture(t)
	f.life.payments = nil
	_, err := f.life.Checkout(context.Background(), CheckoutRequest{UserID: 1, PackageID: f.pkg.ID, Date: monday, StartTime: "9:00 AM", PaymentToken: "tokn_paid"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if f.slotBooked(t, "9:00 AM") {
		t.Fatal("slot reserved although the payment could not be taken")
	}
}
