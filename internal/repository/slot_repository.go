package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// SlotRepo is the MySQL slot store.  It is the only code that writes the
// is_booked column, and every write is guarded: inserts by the unique
// (slot_date, start_time) key, updates by a condition on the current
// is_booked value.  Nothing here reads is_booked and writes it back.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the provided database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, slot_date, start_time, end_time, is_booked, booked_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(rs rowScanner) (model.Slot, error) {
	var (
		s        model.Slot
		day      string
		bookedBy sql.NullInt64
	)
	if err := rs.Scan(&s.ID, &day, &s.StartTime, &s.EndTime, &s.IsBooked, &bookedBy); err != nil {
		return model.Slot{}, err
	}
	d, err := time.Parse(model.DayLayout, day)
	if err != nil {
		return model.Slot{}, err
	}
	s.Date = d
	if bookedBy.Valid {
		u := uint64(bookedBy.Int64)
		s.BookedBy = &u
	}
	return s, nil
}

func (r *SlotRepo) query(ctx context.Context, q string, args ...any) ([]model.Slot, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByDate returns every persisted slot row of day ("YYYY-MM-DD").
func (r *SlotRepo) ListByDate(ctx context.Context, day string) ([]model.Slot, error) {
	return r.query(ctx, `SELECT `+slotColumns+` FROM slots WHERE slot_date = ? ORDER BY id`, day)
}

// List returns persisted rows ordered by date and wall-clock start.  An
// empty day lists every date.
func (r *SlotRepo) List(ctx context.Context, day string) ([]model.Slot, error) {
	var (
		out []model.Slot
		err error
	)
	if day == "" {
		out, err = r.query(ctx, `SELECT `+slotColumns+` FROM slots`)
	} else {
		out, err = r.query(ctx, `SELECT `+slotColumns+` FROM slots WHERE slot_date = ?`, day)
	}
	if err != nil {
		return nil, err
	}
	SortSlots(out)
	return out, nil
}

// GetByKey fetches the row stored for (day, start).
func (r *SlotRepo) GetByKey(ctx context.Context, day, start string) (model.Slot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE slot_date = ? AND start_time = ? LIMIT 1`, day, start)
	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, err
}

// InsertBooked writes a new, already booked row.  When any row exists for
// the key it fails with ErrDuplicateSlot and writes nothing.
func (r *SlotRepo) InsertBooked(ctx context.Context, s *model.Slot) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO slots (slot_date, start_time, end_time, is_booked, booked_by) VALUES (?, ?, ?, 1, ?)`,
		s.DayKey(), s.StartTime, s.EndTime, nullableID(s.BookedBy))
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateSlot
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.IsBooked = true
	return nil
}

// MarkBookedIfFree books an existing free row for userID.  It reports
// false when the row is missing or already booked.
func (r *SlotRepo) MarkBookedIfFree(ctx context.Context, day, start string, userID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE slots SET is_booked = 1, booked_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE slot_date = ? AND start_time = ? AND is_booked = 0`,
		int64(userID), day, start)
	return affectedOne(res, err)
}

// MarkFree releases a booked row.  With a non-nil holder only a row held by
// that user is released.  It reports whether a row changed.
func (r *SlotRepo) MarkFree(ctx context.Context, day, start string, holder *uint64) (bool, error) {
	q := `UPDATE slots SET is_booked = 0, booked_by = NULL, updated_at = CURRENT_TIMESTAMP
		  WHERE slot_date = ? AND start_time = ? AND is_booked = 1`
	args := []any{day, start}
	if holder != nil {
		q += ` AND booked_by = ?`
		args = append(args, int64(*holder))
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	return affectedOne(res, err)
}

// Delete removes a slot row by id.  This is an administrative override.
func (r *SlotRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, int64(id))
	ok, err := affectedOne(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSlotNotFound
	}
	return nil
}

func nullableID(id *uint64) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SortSlots orders slots by date and then by parsed wall-clock start, so
// "9:00 AM" sorts before "10:00 AM".
func SortSlots(s []model.Slot) {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].Date.Equal(s[j].Date) {
			return s[i].Date.Before(s[j].Date)
		}
		return clock(s[i].StartTime) < clock(s[j].StartTime)
	})
}

func clock(v string) int {
	t, err := time.Parse("3:04 PM", v)
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}
