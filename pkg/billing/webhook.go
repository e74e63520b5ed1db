package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types acted upon. Everything else is acknowledged and
// dropped.
const (
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Signature verification failures. Callers should respond 400 without
// detail; the specific cause only goes to logs.
var (
	ErrBadSignature    = errors.New("webhook signature mismatch")
	ErrMalformedHeader = errors.New("malformed signature header")
	ErrStaleTimestamp  = errors.New("signature timestamp outside tolerance")
	ErrMissingSecret   = errors.New("webhook secret not configured")
)

// DefaultTolerance bounds how old a signed timestamp may be. Stripe uses
// five minutes; we keep the same window.
const DefaultTolerance = 5 * time.Minute

// Event is the envelope of a webhook delivery.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object Subscription `json:"object"`
	} `json:"data"`
}

// Subscription is the slice of the subscription object we act on. The
// user is resolved from metadata rather than a customer lookup, so mock
// and real deliveries are handled the same way.
type Subscription struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
}

// UserID returns the application user the subscription belongs to.
func (s Subscription) UserID() string {
	return strings.TrimSpace(s.Metadata["userId"])
}

// Active reports whether the subscription grants premium access.
func (s Subscription) Active() bool {
	return s.Status == "active" || s.Status == "trialing"
}

// Period converts the unix period bounds to times. Zero values map to nil.
func (s Subscription) Period() (start, end *time.Time) {
	if s.CurrentPeriodStart > 0 {
		t := time.Unix(s.CurrentPeriodStart, 0).UTC()
		start = &t
	}
	if s.CurrentPeriodEnd > 0 {
		t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
		end = &t
	}
	return start, end
}

// Verifier checks Stripe-style webhook signatures: the header carries
// "t=<unix>,v1=<hex hmac>" where the MAC is HMAC-SHA256 over
// "<t>.<raw body>" keyed with the endpoint secret.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier builds a verifier for one endpoint secret.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}, nil
}

// Verify checks the signature header against the raw request body.
func (v *Verifier) Verify(payload []byte, header string) error {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return ErrStaleTimestamp
	}
	expected := computeSignature(v.secret, ts, payload)
	for _, sig := range sigs {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return ErrBadSignature
}

// ParseEvent verifies the signature and decodes the event envelope.
func (v *Verifier) ParseEvent(payload []byte, header string) (Event, error) {
	if err := v.Verify(payload, header); err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	return ev, nil
}

func parseSignatureHeader(header string) (ts int64, sigs []string, err error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, ErrMalformedHeader
	}
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedHeader
			}
		case "v1":
			sigs = append(sigs, val)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, ErrMalformedHeader
	}
	return ts, sigs, nil
}

func computeSignature(secret []byte, ts int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignPayload produces a valid signature header for the given body. Used
// by tests and by the mock checkout flow to self-deliver events.
func SignPayload(secret string, at time.Time, payload []byte) string {
	sig := computeSignature([]byte(secret), at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}
