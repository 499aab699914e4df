package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iliyamo/studio-booking/internal/model"
)

const testSlotSchema = `
CREATE TABLE slots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slot_date TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	is_booked INTEGER NOT NULL DEFAULT 0,
	booked_by INTEGER NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (slot_date, start_time)
);`

func newTestSlotRepo(t *testing.T) *SlotRepo {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "slots.db") + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(testSlotSchema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewSlotRepo(db)
}

func bookedSlot(day, start, end string, user uint64) *model.Slot {
	d, _ := time.Parse(model.DayLayout, day)
	return &model.Slot{Date: d, StartTime: start, EndTime: end, BookedBy: &user}
}

func TestSlotRepoInsertAndDuplicate(t *testing.T) {
	repo := newTestSlotRepo(t)
	ctx := context.Background()

	s := bookedSlot("2025-01-06", "9:00 AM", "10:00 AM", 1)
	if err := repo.InsertBooked(ctx, s); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if s.ID == 0 || !s.IsBooked {
		t.Fatalf("insert did not fill slot: %+v", s)
	}
	err := repo.InsertBooked(ctx, bookedSlot("2025-01-06", "9:00 AM", "10:00 AM", 2))
	if !errors.Is(err, ErrDuplicateSlot) {
		t.Fatalf("second insert err = %v, want ErrDuplicateSlot", err)
	}

	got, err := repo.GetByKey(ctx, "2025-01-06", "9:00 AM")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsBooked || got.BookedBy == nil || *got.BookedBy != 1 || got.DayKey() != "2025-01-06" {
		t.Fatalf("stored slot = %+v", got)
	}
	if _, err := repo.GetByKey(ctx, "2025-01-06", "10:00 AM"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("missing key err = %v", err)
	}
}

func TestSlotRepoReleaseAndRebook(t *testing.T) {
	repo := newTestSlotRepo(t)
	ctx := context.Background()
	if err := repo.InsertBooked(ctx, bookedSlot("2025-01-06", "2:00 PM", "3:00 PM", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if ok, err := repo.MarkBookedIfFree(ctx, "2025-01-06", "2:00 PM", 2); err != nil || ok {
		t.Fatalf("CAS on booked row = %v, %v; want false", ok, err)
	}
	other := uint64(9)
	if ok, _ := repo.MarkFree(ctx, "2025-01-06", "2:00 PM", &other); ok {
		t.Fatal("release by a non-holder must not change the row")
	}
	if ok, err := repo.MarkFree(ctx, "2025-01-06", "2:00 PM", nil); err != nil || !ok {
		t.Fatalf("release = %v, %v", ok, err)
	}
	if ok, err := repo.MarkBookedIfFree(ctx, "2025-01-06", "2:00 PM", 2); err != nil || !ok {
		t.Fatalf("rebook = %v, %v", ok, err)
	}
	got, _ := repo.GetByKey(ctx, "2025-01-06", "2:00 PM")
	if !got.IsBooked || *got.BookedBy != 2 {
		t.Fatalf("after rebook slot = %+v", got)
	}
	rows, _ := repo.ListByDate(ctx, "2025-01-06")
	if len(rows) != 1 {
		t.Fatalf("want one row for the key, got %d", len(rows))
	}
}

func TestSlotRepoConcurrentCAS(t *testing.T) {
	repo := newTestSlotRepo(t)
	ctx := context.Background()
	if err := repo.InsertBooked(ctx, bookedSlot("2025-02-03", "11:00 AM", "12:00 PM", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.MarkFree(ctx, "2025-02-03", "11:00 AM", nil); err != nil {
		t.Fatalf("release: %v", err)
	}

	const n = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		mu    sync.Mutex
		wins  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			<-start
			ok, err := repo.MarkBookedIfFree(ctx, "2025-02-03", "11:00 AM", user)
			if err != nil {
				t.Errorf("CAS: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(uint64(100 + i))
	}
	close(start)
	wg.Wait()
	if wins != 1 {
		t.Fatalf("want exactly one CAS winner, got %d", wins)
	}
}

func TestSlotRepoListAndDelete(t *testing.T) {
	repo := newTestSlotRepo(t)
	ctx := context.Background()
	for _, s := range []*model.Slot{
		bookedSlot("2025-01-07", "9:00 AM", "10:00 AM", 1),
		bookedSlot("2025-01-06", "10:00 AM", "11:00 AM", 1),
		bookedSlot("2025-01-06", "9:00 AM", "10:00 AM", 2),
	} {
		if err := repo.InsertBooked(ctx, s); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	all, err := repo.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("list = %v, %v", all, err)
	}
	if all[0].DayKey() != "2025-01-06" || all[0].StartTime != "9:00 AM" || all[1].StartTime != "10:00 AM" {
		t.Fatalf("unexpected order: %+v", all)
	}
	if err := repo.Delete(ctx, all[2].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, all[2].ID); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	day, _ := repo.List(ctx, "2025-01-07")
	if len(day) != 0 {
		t.Fatalf("deleted row still listed: %+v", day)
	}
}
