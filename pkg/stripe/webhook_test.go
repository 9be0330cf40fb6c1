package stripe

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookout-hq/lookout/pkg/apperrors"
)

const testSecret = "whsec_test"

var testPayload = []byte(`{"id":"evt_1","type":"invoice.payment_failed","created":1700000000,"data":{"object":{"id":"in_1","customer":"cus_1","subscription":"sub_1"}}}`)

func newTestVerifier(now time.Time) *WebhookVerifier {
	v := NewWebhookVerifier(testSecret, 0)
	v.now = func() time.Time { return now }
	return v
}

func TestConstructEvent_Valid(t *testing.T) {
	now := time.Unix(1700000100, 0)
	header := SignatureHeaderValue(now.Add(-time.Minute), testPayload, testSecret)

	event, err := newTestVerifier(now).ConstructEvent(testPayload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventInvoicePaymentFailed, event.Type)

	inv, err := event.DecodeInvoice()
	require.NoError(t, err)
	assert.Equal(t, "cus_1", inv.Customer.String())
}

func TestConstructEvent_AcceptsAnyMatchingV1(t *testing.T) {
	now := time.Unix(1700000100, 0)
	good := SignatureHeaderValue(now, testPayload, testSecret)
	header := "t=1700000100,v1=deadbeef," + good[len("t=1700000100,"):]

	_, err := newTestVerifier(now).ConstructEvent(testPayload, header)
	assert.NoError(t, err)
}

func TestConstructEvent_Rejections(t *testing.T) {
	now := time.Unix(1700000100, 0)

	tests := []struct {
		name    string
		payload []byte
		header  string
		wantErr error
	}{
		{"missing header", testPayload, "", ErrNoSignature},
		{"malformed header", testPayload, "garbage", apperrors.ErrInvalidSignature},
		{"no v1", testPayload, "t=1700000100,v0=abc", apperrors.ErrInvalidSignature},
		{"wrong secret", testPayload, SignatureHeaderValue(now, testPayload, "whsec_other"), apperrors.ErrInvalidSignature},
		{"tampered payload", []byte(`{"id":"evt_2"}`), SignatureHeaderValue(now, testPayload, testSecret), apperrors.ErrInvalidSignature},
		{"too old", testPayload, SignatureHeaderValue(now.Add(-10*time.Minute), testPayload, testSecret), apperrors.ErrInvalidSignature},
		{"too far in future", testPayload, SignatureHeaderValue(now.Add(10*time.Minute), testPayload, testSecret), apperrors.ErrInvalidSignature},
		{"bad timestamp", testPayload, "t=abc,v1=00", apperrors.ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestVerifier(now).ConstructEvent(tt.payload, tt.header)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestConstructEvent_MalformedPayloadAfterValidSignature(t *testing.T) {
	now := time.Unix(1700000100, 0)
	payload := []byte(`not json`)

	_, err := newTestVerifier(now).ConstructEvent(payload, SignatureHeaderValue(now, payload, testSecret))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestConstructEvent_NoSecretConfigured(t *testing.T) {
	v := NewWebhookVerifier("", 0)
	_, err := v.ConstructEvent(testPayload, SignatureHeaderValue(time.Now(), testPayload, ""))
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestComputeSignature_Deterministic(t *testing.T) {
	a := ComputeSignature("1", []byte("{}"), "secret")
	assert.Len(t, a, 64)
	assert.Equal(t, a, ComputeSignature("1", []byte("{}"), "secret"))
	assert.NotEqual(t, a, ComputeSignature("2", []byte("{}"), "secret"))
}
