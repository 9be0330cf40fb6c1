package stripe

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

	"github.com/lookout-hq/lookout/pkg/apperrors"
)

// SignatureHeader is the header carrying the webhook signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is the maximum accepted age of a signed webhook.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrNoSignature means the request carried no signature header.
	ErrNoSignature = errors.New("no stripe signature found")
	// ErrTimestampOutsideTolerance means the signature is too old (or too far in the future).
	ErrTimestampOutsideTolerance = fmt.Errorf("%w: timestamp outside tolerance", apperrors.ErrInvalidSignature)
)

// WebhookVerifier checks webhook signatures and parses events.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier creates a verifier for the endpoint's signing secret.
// A zero tolerance uses DefaultTolerance.
func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &WebhookVerifier{secret: secret, tolerance: tolerance, now: time.Now}
}

// ConstructEvent verifies the signature header against payload and decodes
// the event. Verification failures wrap apperrors.ErrInvalidSignature.
func (v *WebhookVerifier) ConstructEvent(payload []byte, sigHeader string) (*Event, error) {
	sigHeader = strings.TrimSpace(sigHeader)
	if sigHeader == "" {
		return nil, ErrNoSignature
	}
	if v.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", apperrors.ErrInvalidSignature)
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp", apperrors.ErrInvalidSignature)
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return nil, ErrTimestampOutsideTolerance
	}

	expected := ComputeSignature(timestamp, payload, v.secret)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: no matching v1 signature", apperrors.ErrInvalidSignature)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: malformed event payload", apperrors.ErrValidation)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: event missing id or type", apperrors.ErrValidation)
	}
	return &event, nil
}

// ComputeSignature returns the hex HMAC-SHA256 of "<timestamp>.<payload>".
func ComputeSignature(timestamp string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeaderValue builds a header value for payload signed at t. Used by tests and tooling.
func SignatureHeaderValue(t time.Time, payload []byte, secret string) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return "t=" + ts + ",v1=" + ComputeSignature(ts, payload, secret)
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			timestamp = strings.TrimSpace(value)
		case "v1":
			signatures = append(signatures, strings.TrimSpace(value))
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, fmt.Errorf("%w: malformed signature header", apperrors.ErrInvalidSignature)
	}
	return timestamp, signatures, nil
}
