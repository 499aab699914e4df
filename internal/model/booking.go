package model

import "time"

// BookingStatus is the commercial state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Terminal reports whether no lifecycle transition leaves s.
func (s BookingStatus) Terminal() bool { return s != BookingPending }

// Booking records a user's reservation of a package for one slot.  The
// package title and price are copied at checkout so later catalog edits
// do not change what the customer agreed to pay.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – owner of the booking.
//  PackageID    – package being booked.
//  SlotID       – reserved slot backing the session.
//  PackageTitle – package name at checkout time.
//  PriceCents   – package price at checkout time.
//  SessionDate  – calendar day of the photography session.
//  SessionStart – start of the session window, e.g. "2:00 PM".
//  SessionEnd   – end of the session window.
//  Status       – pending, confirmed, completed or cancelled.
//  Notes        – free text from the customer.
//  OrderRef     – order or charge id issued at checkout; payment proofs
//                 must name it.
//  PaymentRef   – provider payment/charge id once confirmed.
//  BookingDate  – when the booking was created.
//  UpdatedAt    – last update.
type Booking struct {
	ID           uint64        `json:"id"`                    // bookings.id
	UserID       uint64        `json:"user_id"`               // bookings.user_id
	PackageID    uint64        `json:"package_id"`            // bookings.package_id
	SlotID       uint64        `json:"slot_id"`               // bookings.slot_id
	PackageTitle string        `json:"package_title"`         // bookings.package_title
	PriceCents   uint32        `json:"price_cents"`           // bookings.price_cents
	SessionDate  time.Time     `json:"session_date"`          // bookings.session_date
	SessionStart string        `json:"session_start"`         // bookings.session_start
	SessionEnd   string        `json:"session_end"`           // bookings.session_end
	Status       BookingStatus `json:"status"`                // bookings.status
	Notes        string        `json:"notes,omitempty"`       // bookings.notes
	OrderRef     string        `json:"order_ref"`             // bookings.order_ref
	PaymentRef   *string       `json:"payment_ref,omitempty"` // bookings.payment_ref (nullable)
	BookingDate  time.Time     `json:"booking_date"`          // bookings.created_at
	UpdatedAt    time.Time     `json:"updated_at"`            // bookings.updated_at
}
