package model

import "time"

// Slot represents one bookable window on one calendar day.  A slot row
// is only written the first time its window is reserved; until then the
// window exists purely as generated availability.  Rows are updated in
// place on release and re-booking and are never re-created.
//
// Fields:
//  ID        – primary key identifier.
//  Date      – calendar day at the canonical instant (midnight UTC).
//  StartTime – wall-clock start in display form, e.g. "9:00 AM".
//  EndTime   – wall-clock end in display form, e.g. "10:00 AM".
//  IsBooked  – whether the window is currently held.
//  BookedBy  – user holding the window (nil when free).
//  CreatedAt – when the row was first written.
//  UpdatedAt – last mutation.
type Slot struct {
	ID        uint64    `json:"id"`         // slots.id
	Date      time.Time `json:"date"`       // slots.slot_date
	StartTime string    `json:"start_time"` // slots.start_time
	EndTime   string    `json:"end_time"`   // slots.end_time
	IsBooked  bool      `json:"is_booked"`  // slots.is_booked
	BookedBy  *uint64   `json:"booked_by,omitempty"` // slots.booked_by (nullable)
	CreatedAt time.Time `json:"created_at"` // slots.created_at
	UpdatedAt time.Time `json:"updated_at"` // slots.updated_at
}

// DayKey returns the YYYY-MM-DD key the slot is stored under.
func (s Slot) DayKey() string { return s.Date.UTC().Format(DayLayout) }

// DayLayout is the storage format of a calendar day.
const DayLayout = "2006-01-02"

// SlotView is one entry of a merged availability listing.  It carries no
// identity because most windows have never been persisted.
type SlotView struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsBooked  bool   `json:"is_booked"`
}
