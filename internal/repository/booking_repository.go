package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// BookingRepo provides persistence for bookings.  Status changes only go
// through TransitionStatus, which is conditional on the current status so
// that duplicate payment callbacks cause at most one change.  All
// timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, package_id, slot_id, package_title, price_cents, session_date,
	session_start, session_end, status, notes, order_ref, payment_ref, created_at, updated_at`

func scanBooking(rs rowScanner) (model.Booking, error) {
	var (
		b      model.Booking
		day    string
		status string
		notes  sql.NullString
		ref    sql.NullString
	)
	err := rs.Scan(&b.ID, &b.UserID, &b.PackageID, &b.SlotID, &b.PackageTitle, &b.PriceCents, &day,
		&b.SessionStart, &b.SessionEnd, &status, &notes, &b.OrderRef, &ref, &b.BookingDate, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	if b.SessionDate, err = time.Parse(model.DayLayout, day); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.Notes = notes.String
	if ref.Valid {
		s := ref.String
		b.PaymentRef = &s
	}
	return b, nil
}

// Create inserts a booking and fills in its generated ID and timestamps.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	now := time.Now().UTC().Truncate(time.Second)
	const q = `INSERT INTO bookings (user_id, package_id, slot_id, package_title, price_cents, session_date,
		session_start, session_end, status, notes, order_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.UserID, b.PackageID, b.SlotID, b.PackageTitle, b.PriceCents,
		b.SessionDate.Format(model.DayLayout), b.SessionStart, b.SessionEnd, string(b.Status), b.Notes, b.OrderRef, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.BookingDate = now
	b.UpdatedAt = now
	return nil
}

// GetByID fetches a booking by id.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? LIMIT 1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// TransitionStatus moves booking id from one status to another and, when
// paymentRef is non-nil, records the provider reference.  It reports false
// when the booking was not in the from status.
func (r *BookingRepo) TransitionStatus(ctx context.Context, id uint64, from, to model.BookingStatus, paymentRef *string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_ref = COALESCE(?, payment_ref), updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), paymentRef, time.Now().UTC(), id, string(from))
	return affectedOne(res, err)
}

// SetOrderRef replaces the order reference of a booking that is still
// pending.  It reports false otherwise.
func (r *BookingRepo) SetOrderRef(ctx context.Context, id uint64, ref string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET order_ref = ?, updated_at = ? WHERE id = ? AND status = ?`,
		ref, time.Now().UTC(), id, string(model.BookingPending))
	return affectedOne(res, err)
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY id DESC`, userID)
}

// ListAll returns every booking, newest first, optionally filtered by status.
func (r *BookingRepo) ListAll(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY id DESC`)
	}
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE status = ? ORDER BY id DESC`, string(status))
}

// ListPendingBefore returns pending bookings created before cutoff.
func (r *BookingRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE status = ? AND created_at < ? ORDER BY id`,
		string(model.BookingPending), cutoff.UTC())
}
