package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

func sampleBooking() model.Booking {
	ref := "chrg_test_1"
	return model.Booking{
		ID: 12, UserID: 3, PackageID: 5, PackageTitle: "Newborn Classic", PriceCents: 15000,
		SessionDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), SessionStart: "9:00 AM", SessionEnd: "10:00 AM",
		PaymentRef: &ref,
	}
}

func TestNewBookingEvent(t *testing.T) {
	ev := NewBookingEvent(KeyBookingConfirmed, sampleBooking(), "")
	if ev.EventID == "" || ev.BookingID != 12 || ev.SessionDate != "2025-01-06" || ev.PaymentRef != "chrg_test_1" {
		t.Fatalf("event = %+v", ev)
	}
	if other := NewBookingEvent(KeyBookingConfirmed, sampleBooking(), ""); other.EventID == ev.EventID {
		t.Fatal("event ids must be unique")
	}
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(NewBookingEvent(KeyBookingCancelled, sampleBooking(), "expired"))
	for _, want := range []string{"Booking cancelled", "booking_id=12", `package="Newborn Classic"`, "session=2025-01-06 9:00 AM-10:00 AM", "reason=expired"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") || strings.Count(line, "\n") != 1 {
		t.Fatalf("line must be a single terminated line: %q", line)
	}
}

func TestAppendLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	c := &LogConsumer{Path: path}
	body := `{"kind":"booking.confirmed","booking_id":1,"user_id":2,"occurred_at":"2025-01-06T09:00:00Z"}`
	for i := 0; i < 2; i++ {
		if err := c.handleMessage([]byte(body)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if err := c.handleMessage([]byte("{")); err == nil {
		t.Fatal("bad JSON should be rejected")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := strings.Count(string(b), "Booking confirmed"); n != 2 {
		t.Fatalf("want 2 lines, got %d: %s", n, b)
	}
}
