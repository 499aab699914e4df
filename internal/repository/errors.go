// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as deleting a package
// that is still referenced by bookings.
var ErrConflict = errors.New("conflict")

// ErrDuplicateSlot is returned by InsertBooked when a row already exists
// for the (date, start time) key.  The allocator reacts by attempting the
// conditional update instead.
var ErrDuplicateSlot = errors.New("slot row already exists")

var (
	ErrSlotNotFound        = errors.New("slot not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrPackageNotFound     = errors.New("package not found")
	ErrGalleryItemNotFound = errors.New("gallery item not found")
	ErrEmailExists         = errors.New("email already exists")
)

// isDuplicateKey reports whether err is a unique-key violation.  MySQL
// reports error 1062; the SQLite engine used in tests reports the
// constraint by name.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, "1062") || strings.Contains(msg, "UNIQUE constraint failed")
}
