package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/studio-booking/internal/calendar"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

const tracerName = "github.com/iliyamo/studio-booking/internal/service"

// Allocator merges generated availability with persisted slot rows and
// performs the guarded reserve.  It is the single mutation entry point for
// is_booked; every other component goes through Reserve or Release.
type Allocator struct {
	rule   calendar.Rule
	slots  SlotStore
	log    *slog.Logger
	tracer trace.Tracer
}

// NewAllocator returns an allocator over slots.  A nil logger uses the
// process default.
func NewAllocator(rule calendar.Rule, slots SlotStore, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	if rule.Location == nil {
		rule.Location = time.UTC
	}
	return &Allocator{rule: rule, slots: slots, log: logger, tracer: otel.Tracer(tracerName)}
}

// Rule returns the availability rule in use.
func (a *Allocator) Rule() calendar.Rule { return a.rule }

// ParseDay parses a request date into the canonical day.
func (a *Allocator) ParseDay(s string) (time.Time, error) {
	d, err := calendar.ParseDay(s, a.rule.Location)
	if err != nil {
		return time.Time{}, invalid("date", err.Error())
	}
	return d, nil
}

// Availability is the merged view of one day.  Degraded is set when the
// store could not be read and the slots are the generated defaults.
type Availability struct {
	Date     string           `json:"date"`
	Closed   bool             `json:"closed"`
	Degraded bool             `json:"degraded,omitempty"`
	Slots    []model.SlotView `json:"slots"`
}

// Availability returns the ordered windows of day with their booked state.
// A closed day returns no windows without consulting the store.  When the
// store fails the generated windows are returned unbooked; nothing is
// ever reported booked without a stored row saying so.
func (a *Allocator) Availability(ctx context.Context, day time.Time) (Availability, error) {
	if day.IsZero() {
		return Availability{}, invalid("date", "is required")
	}
	day = calendar.Canonical(day)
	key := calendar.Key(day)
	out := Availability{Date: key, Slots: []model.SlotView{}}

	windows := a.rule.Windows(day)
	if len(windows) == 0 {
		out.Closed = true
		return out, nil
	}

	ctx, span := a.tracer.Start(ctx, "allocator.Availability", trace.WithAttributes(attribute.String("slot.date", key)))
	defer span.End()

	booked := map[string]bool{}
	rows, err := a.slots.ListByDate(ctx, key)
	if err != nil {
		a.log.Warn("availability: slot store unreachable, serving generated defaults", "date", key, "err", err)
		span.RecordError(err)
		out.Degraded = true
	} else {
		for _, r := range rows {
			booked[r.StartTime] = r.IsBooked
		}
	}
	for _, w := range windows {
		out.Slots = append(out.Slots, model.SlotView{
			Date:      key,
			StartTime: w.StartTime,
			EndTime:   w.EndTime,
			IsBooked:  booked[w.StartTime],
		})
	}
	return out, nil
}

// ReserveRequest names the window to reserve.  EndTime may be empty, in
// which case the generated end of the window is used.
type ReserveRequest struct {
	Date      time.Time
	StartTime string
	EndTime   string
	UserID    uint64
}

func (a *Allocator) window(req ReserveRequest) (time.Time, calendar.Window, error) {
	if req.UserID == 0 {
		return time.Time{}, calendar.Window{}, invalid("user", "authenticated user required")
	}
	if req.Date.IsZero() {
		return time.Time{}, calendar.Window{}, invalid("date", "is required")
	}
	if req.StartTime == "" {
		return time.Time{}, calendar.Window{}, invalid("start_time", "is required")
	}
	day := calendar.Canonical(req.Date)
	if a.rule.Closed(day) {
		return time.Time{}, calendar.Window{}, invalid("date", "the studio is closed on "+day.Weekday().String())
	}
	w, ok := a.rule.Find(day, req.StartTime)
	if !ok {
		return time.Time{}, calendar.Window{}, invalid("start_time", "not a bookable window")
	}
	if req.EndTime != "" && req.EndTime != w.EndTime {
		return time.Time{}, calendar.Window{}, invalid("end_time", "window ends at "+w.EndTime)
	}
	return day, w, nil
}

// Reserve atomically books one window for a user.  Exactly one of any
// number of concurrent callers for the same (date, start) succeeds; the
// others get ErrSlotAlreadyBooked.  A write cut short by the context is
// reported as ErrOutcomeUnknown and callers should re-read availability.
func (a *Allocator) Reserve(ctx context.Context, req ReserveRequest) (model.Slot, error) {
	day, w, err := a.window(req)
	if err != nil {
		return model.Slot{}, err
	}
	key := calendar.Key(day)

	ctx, span := a.tracer.Start(ctx, "allocator.Reserve", trace.WithAttributes(
		attribute.String("slot.date", key),
		attribute.String("slot.start", w.StartTime),
	))
	defer span.End()

	slot, err := a.reserve(ctx, day, w, req.UserID)
	if err != nil {
		if errors.Is(err, ErrSlotAlreadyBooked) {
			a.log.Info("reserve: slot taken", "date", key, "start", w.StartTime, "user_id", req.UserID)
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			a.log.Warn("reserve failed", "date", key, "start", w.StartTime, "err", err)
		}
		return model.Slot{}, err
	}
	return slot, nil
}

func (a *Allocator) reserve(ctx context.Context, day time.Time, w calendar.Window, userID uint64) (model.Slot, error) {
	key := calendar.Key(day)
	// The row can disappear between a failed insert and the update when an
	// admin deletes it; one retry of the insert covers that.
	for attempt := 0; attempt < 2; attempt++ {
		uid := userID
		s := &model.Slot{Date: day, StartTime: w.StartTime, EndTime: w.EndTime, IsBooked: true, BookedBy: &uid}
		err := a.slots.InsertBooked(ctx, s)
		if err == nil {
			return *s, nil
		}
		if !errors.Is(err, repository.ErrDuplicateSlot) {
			return model.Slot{}, writeErr(ctx, err)
		}

		ok, err := a.slots.MarkBookedIfFree(ctx, key, w.StartTime, userID)
		if err != nil {
			return model.Slot{}, writeErr(ctx, err)
		}
		if ok {
			got, err := a.slots.GetByKey(ctx, key, w.StartTime)
			if err != nil {
				// The update landed but the row cannot be read back.
				return model.Slot{}, fmt.Errorf("%w: read back: %v", ErrOutcomeUnknown, err)
			}
			return got, nil
		}

		if _, err := a.slots.GetByKey(ctx, key, w.StartTime); err != nil {
			if errors.Is(err, repository.ErrSlotNotFound) {
				continue
			}
			return model.Slot{}, writeErr(ctx, err)
		}
		return model.Slot{}, ErrSlotAlreadyBooked
	}
	return model.Slot{}, ErrSlotAlreadyBooked
}

// Release frees a booked window regardless of holder.  This is the
// administrative release; the row is kept so it can be booked again.
func (a *Allocator) Release(ctx context.Context, day time.Time, start string) (bool, error) {
	if day.IsZero() || start == "" {
		return false, invalid("slot", "date and start_time are required")
	}
	ok, err := a.slots.MarkFree(ctx, calendar.Key(calendar.Canonical(day)), start, nil)
	if err != nil {
		return false, writeErr(ctx, err)
	}
	return ok, nil
}

// releaseHeld frees a window only if userID still holds it.
func (a *Allocator) releaseHeld(ctx context.Context, day time.Time, start string, userID uint64) (bool, error) {
	uid := userID
	return a.slots.MarkFree(ctx, calendar.Key(calendar.Canonical(day)), start, &uid)
}

// ListSlots returns persisted rows for the admin view.  An empty day lists
// all dates.
func (a *Allocator) ListSlots(ctx context.Context, day time.Time) ([]model.Slot, error) {
	key := ""
	if !day.IsZero() {
		key = calendar.Key(calendar.Canonical(day))
	}
	out, err := a.slots.List(ctx, key)
	if err != nil {
		return nil, readErr(err)
	}
	if out == nil {
		out = []model.Slot{}
	}
	return out, nil
}

// DeleteSlot removes a slot row.  This is an administrative override.
func (a *Allocator) DeleteSlot(ctx context.Context, id uint64) error {
	if err := a.slots.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return ErrNotFound
		}
		return writeErr(ctx, err)
	}
	return nil
}
