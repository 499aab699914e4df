// Package memstore is a test double: in-memory slot, booking and package
// stores with the same guarded-write semantics as the MySQL repositories.
// Only tests import it; the server always runs on internal/repository.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

type slotKey struct{ day, start string }

// Slots is an in-memory slot store.  Set Fail to make every call return
// that error, as an unreachable database would.
type Slots struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[slotKey]*model.Slot
	Fail   error
}

func NewSlots() *Slots { return &Slots{rows: map[slotKey]*model.Slot{}} }

func (s *Slots) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Fail
}

func copySlot(in *model.Slot) model.Slot {
	out := *in
	if in.BookedBy != nil {
		u := *in.BookedBy
		out.BookedBy = &u
	}
	return out
}

func (s *Slots) ListByDate(ctx context.Context, day string) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []model.Slot
	for k, v := range s.rows {
		if k.day == day {
			out = append(out, copySlot(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Slots) List(ctx context.Context, day string) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := []model.Slot{}
	for k, v := range s.rows {
		if day == "" || k.day == day {
			out = append(out, copySlot(v))
		}
	}
	repository.SortSlots(out)
	return out, nil
}

func (s *Slots) GetByKey(ctx context.Context, day, start string) (model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return model.Slot{}, err
	}
	v, ok := s.rows[slotKey{day, start}]
	if !ok {
		return model.Slot{}, repository.ErrSlotNotFound
	}
	return copySlot(v), nil
}

func (s *Slots) InsertBooked(ctx context.Context, in *model.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	k := slotKey{in.DayKey(), in.StartTime}
	if _, ok := s.rows[k]; ok {
		return repository.ErrDuplicateSlot
	}
	s.nextID++
	now := time.Now().UTC()
	in.ID, in.IsBooked, in.CreatedAt, in.UpdatedAt = s.nextID, true, now, now
	row := copySlot(in)
	s.rows[k] = &row
	return nil
}

func (s *Slots) MarkBookedIfFree(ctx context.Context, day, start string, userID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return false, err
	}
	v, ok := s.rows[slotKey{day, start}]
	if !ok || v.IsBooked {
		return false, nil
	}
	u := userID
	v.IsBooked, v.BookedBy, v.UpdatedAt = true, &u, time.Now().UTC()
	return true, nil
}

func (s *Slots) MarkFree(ctx context.Context, day, start string, holder *uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return false, err
	}
	v, ok := s.rows[slotKey{day, start}]
	if !ok || !v.IsBooked {
		return false, nil
	}
	if holder != nil && (v.BookedBy == nil || *v.BookedBy != *holder) {
		return false, nil
	}
	v.IsBooked, v.BookedBy, v.UpdatedAt = false, nil, time.Now().UTC()
	return true, nil
}

func (s *Slots) Delete(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	for k, v := range s.rows {
		if v.ID == id {
			delete(s.rows, k)
			return nil
		}
	}
	return repository.ErrSlotNotFound
}

// Bookings is an in-memory booking store.
type Bookings struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]*model.Booking
	Fail   error
	// FailCreate makes only Create fail, for compensation tests.
	FailCreate error
}

func NewBookings() *Bookings { return &Bookings{rows: map[uint64]*model.Booking{}} }

func copyBooking(in *model.Booking) model.Booking {
	out := *in
	if in.PaymentRef != nil {
		r := *in.PaymentRef
		out.PaymentRef = &r
	}
	return out
}

func (b *Bookings) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.Fail
}

func (b *Bookings) Create(ctx context.Context, in *model.Booking) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return err
	}
	if b.FailCreate != nil {
		return b.FailCreate
	}
	b.nextID++
	now := time.Now().UTC()
	in.ID, in.BookingDate, in.UpdatedAt = b.nextID, now, now
	row := copyBooking(in)
	b.rows[in.ID] = &row
	return nil
}

func (b *Bookings) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return model.Booking{}, err
	}
	v, ok := b.rows[id]
	if !ok {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return copyBooking(v), nil
}

func (b *Bookings) TransitionStatus(ctx context.Context, id uint64, from, to model.BookingStatus, paymentRef *string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return false, err
	}
	v, ok := b.rows[id]
	if !ok || v.Status != from {
		return false, nil
	}
	v.Status, v.UpdatedAt = to, time.Now().UTC()
	if paymentRef != nil {
		r := *paymentRef
		v.PaymentRef = &r
	}
	return true, nil
}

func (b *Bookings) SetOrderRef(ctx context.Context, id uint64, ref string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return false, err
	}
	v, ok := b.rows[id]
	if !ok || v.Status != model.BookingPending {
		return false, nil
	}
	v.OrderRef, v.UpdatedAt = ref, time.Now().UTC()
	return true, nil
}

func (b *Bookings) filter(keep func(*model.Booking) bool) []model.Booking {
	out := []model.Booking{}
	for _, v := range b.rows {
		if keep(v) {
			out = append(out, copyBooking(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (b *Bookings) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	return b.filter(func(v *model.Booking) bool { return v.UserID == userID }), nil
}

func (b *Bookings) ListAll(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	return b.filter(func(v *model.Booking) bool { return status == "" || v.Status == status }), nil
}

func (b *Bookings) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	out := b.filter(func(v *model.Booking) bool {
		return v.Status == model.BookingPending && v.BookingDate.Before(cutoff)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Backdate moves a booking's creation time, for expiry tests.
func (b *Bookings) Backdate(id uint64, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.rows[id]; ok {
		v.BookingDate = v.BookingDate.Add(-d)
	}
}

// Packages is an in-memory catalog.
type Packages struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]*model.Package
}

func NewPackages() *Packages { return &Packages{rows: map[uint64]*model.Package{}} }

func (p *Packages) Create(_ context.Context, in *model.Package) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	now := time.Now().UTC()
	in.ID, in.CreatedAt, in.UpdatedAt = p.nextID, now, now
	row := *in
	p.rows[in.ID] = &row
	return nil
}

func (p *Packages) GetByID(_ context.Context, id uint64) (model.Package, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.rows[id]
	if !ok {
		return model.Package{}, repository.ErrPackageNotFound
	}
	return *v, nil
}

func (p *Packages) List(_ context.Context, f repository.PackageFilter) ([]model.Package, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []model.Package{}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	for _, v := range p.rows {
		if f.Category != "" && v.Category != f.Category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(v.Name+" "+v.Description), q) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (p *Packages) Update(_ context.Context, in *model.Package) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.rows[in.ID]
	if !ok {
		return repository.ErrPackageNotFound
	}
	in.CreatedAt, in.UpdatedAt = v.CreatedAt, time.Now().UTC()
	row := *in
	p.rows[in.ID] = &row
	return nil
}

func (p *Packages) Delete(_ context.Context, id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rows[id]; !ok {
		return repository.ErrPackageNotFound
	}
	delete(p.rows, id)
	return nil
}
