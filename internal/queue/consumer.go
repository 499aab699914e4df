package queue

// The booking log consumer binds a durable queue to both booking routing
// keys and appends one line per event to a log file.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const bookingLogQueue = "studio.booking-log"

// LogConsumer writes booking events to Path (default logs/booking.log).
type LogConsumer struct {
	URL      string
	Exchange string
	Path     string
	Log      *slog.Logger
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, dialling
// again with backoff whenever the connection drops.  Messages that cannot
// be decoded or written are rejected without requeue so the loop keeps
// moving.
func (c *LogConsumer) Run(ctx context.Context) error {
	logger := c.Log
	if logger == nil {
		logger = slog.Default()
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			logger.Warn("booking-consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("booking-consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *LogConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("booking-consumer: set QoS failed", "err", err)
	}
	if err := ch.ExchangeDeclare(c.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare(bookingLogQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range []string{KeyBookingConfirmed, KeyBookingCancelled} {
		if err := ch.QueueBind(q.Name, key, c.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for d := range msgs {
		if err := c.handleMessage(d.Body); err != nil {
			logger.Warn("booking-consumer: handle message failed", "err", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *LogConsumer) handleMessage(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return AppendLog(c.path(), ev)
}

func (c *LogConsumer) path() string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join("logs", "booking.log")
}

// AppendLog appends the formatted event line to the file at path, creating
// the directory when needed.
func AppendLog(path string, ev BookingEvent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders one single-line, human-friendly log entry.
func FormatLine(ev BookingEvent) string {
	verb := "Booking confirmed"
	if ev.Kind == KeyBookingCancelled {
		verb = "Booking cancelled"
	}
	line := fmt.Sprintf("[%s] %s | booking_id=%d | user_id=%d | package=%q | session=%s %s-%s | total=%d cents",
		ev.OccurredAt, verb, ev.BookingID, ev.UserID, ev.PackageTitle, ev.SessionDate, ev.SessionStart, ev.SessionEnd, ev.PriceCents)
	if ev.PaymentRef != "" {
		line += " | payment_ref=" + ev.PaymentRef
	}
	if ev.Reason != "" {
		line += " | reason=" + ev.Reason
	}
	return line + "\n"
}
