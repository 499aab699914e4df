package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

var (
	// ErrChargeNotFound is returned when the provider does not know the id.
	ErrChargeNotFound = errors.New("charge not found")
	// ErrNotConfigured is returned when no provider keys are set.
	ErrNotConfigured = errors.New("payment provider not configured")
)

// Charge is the provider-neutral view of a charge used to confirm a
// booking.  BookingID comes from the charge metadata and is zero when the
// charge was not created for a booking.
type Charge struct {
	ID          string
	Status      string
	Paid        bool
	AmountCents int64
	Currency    string
	BookingID   uint64

	// AuthorizeURI is set when the payer must complete 3-D Secure or an
	// offsite source before the charge can succeed.
	AuthorizeURI string
}

// ChargeRequest creates a charge for one booking.  Token is either a card
// token (tokn_...) or a source id (src_...).
type ChargeRequest struct {
	BookingID   uint64
	OrderRef    string
	AmountCents int64
	Currency    string
	Token       string
	ReturnURI   string
}

// Event is a provider webhook event re-fetched by id.  Charge is set for
// charge events only.
type Event struct {
	ID     string
	Key    string
	Charge *Charge
}

// OmiseGateway creates and reads charges and reads events on Omise.  Webhook bodies are
// never trusted; the event is always fetched again by id.
type OmiseGateway struct {
	client *omise.Client
}

// NewOmiseGateway builds a gateway from the account key pair.
func NewOmiseGateway(publicKey, secretKey string) (*OmiseGateway, error) {
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, err
	}
	return &OmiseGateway{client: c}, nil
}

// do runs a blocking client call and gives up when ctx ends first.
func do(ctx context.Context, call func() error) error {
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateCharge charges the payer for a booking.  The booking id and order
// reference travel in the charge metadata, which is what FetchCharge and
// FetchEvent read back.
func (g *OmiseGateway) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	if req.AmountCents <= 0 || req.Currency == "" || req.Token == "" {
		return Charge{}, errors.New("charge: amount, currency and token are required")
	}
	op := &operations.CreateCharge{
		Amount:      req.AmountCents,
		Currency:    req.Currency,
		Description: "booking " + strconv.FormatUint(req.BookingID, 10),
		ReturnURI:   req.ReturnURI,
		Metadata: map[string]interface{}{
			"booking_id": strconv.FormatUint(req.BookingID, 10),
			"order_ref":  req.OrderRef,
		},
	}
	if strings.HasPrefix(req.Token, "src_") {
		op.Source = req.Token
	} else {
		op.Card = req.Token
	}
	ch := &omise.Charge{}
	if err := do(ctx, func() error { return g.client.Do(ch, op) }); err != nil {
		return Charge{}, err
	}
	return fromOmise(ch), nil
}

// FetchCharge retrieves a charge by id.
func (g *OmiseGateway) FetchCharge(ctx context.Context, chargeID string) (Charge, error) {
	ch := &omise.Charge{}
	err := do(ctx, func() error {
		return g.client.Do(ch, &operations.RetrieveCharge{ChargeID: chargeID})
	})
	if err != nil {
		return Charge{}, translate(err)
	}
	return fromOmise(ch), nil
}

// FetchEvent retrieves a webhook event by id and decodes its charge.
func (g *OmiseGateway) FetchEvent(ctx context.Context, eventID string) (Event, error) {
	ev := &omise.Event{}
	err := do(ctx, func() error {
		return g.client.Do(ev, &operations.RetrieveEvent{EventID: eventID})
	})
	if err != nil {
		return Event{}, translate(err)
	}
	out := Event{ID: ev.ID, Key: ev.Key}
	if strings.HasPrefix(ev.Key, "charge.") && ev.Data != nil {
		// Data is decoded generically by the client.
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return Event{}, fmt.Errorf("event %s: %w", eventID, err)
		}
		var ch omise.Charge
		if err := json.Unmarshal(raw, &ch); err != nil {
			return Event{}, fmt.Errorf("event %s charge: %w", eventID, err)
		}
		c := fromOmise(&ch)
		out.Charge = &c
	}
	return out, nil
}

func fromOmise(ch *omise.Charge) Charge {
	return Charge{
		ID:          ch.ID,
		Status:      string(ch.Status),
		Paid:        string(ch.Status) == "successful",
		AmountCents: ch.Amount,
		Currency:    ch.Currency,
		BookingID:   MetadataBookingID(ch.Metadata),

		AuthorizeURI: ch.AuthorizeURI,
	}
}

// MetadataBookingID reads the booking_id metadata key, which checkout pages
// send either as a number or as a decimal string.
func MetadataBookingID(meta map[string]interface{}) uint64 {
	switch v := meta["booking_id"].(type) {
	case float64:
		if v > 0 {
			return uint64(v)
		}
	case string:
		if n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case json.Number:
		if n, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func translate(err error) error {
	var oe *omise.Error
	if errors.As(err, &oe) && (oe.StatusCode == 404 || oe.Code == "not_found") {
		return fmt.Errorf("%w: %s", ErrChargeNotFound, oe.Message)
	}
	return err
}
