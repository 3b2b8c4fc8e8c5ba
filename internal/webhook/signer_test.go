package webhook

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test123"

func TestComputeSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)

	sig := ComputeSignature(payload, testSecret, 1736600000)
	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64", len(sig))
	}
	if sig != ComputeSignature(payload, testSecret, 1736600000) {
		t.Error("signature is not deterministic")
	}
	if sig == ComputeSignature(payload, testSecret, 1736600001) {
		t.Error("different timestamp should produce different signature")
	}
	if sig == ComputeSignature(payload, testSecret+"x", 1736600000) {
		t.Error("different secret should produce different signature")
	}
}

func TestSignPayload_Format(t *testing.T) {
	now := time.Unix(1736600000, 0)

	header := SignPayload([]byte(`{}`), testSecret, now)

	if !strings.HasPrefix(header, "t=1736600000,v1=") {
		t.Errorf("header = %q", header)
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Unix(1736600000, 0)
	valid := SignPayload(payload, testSecret, now)
	sig := ComputeSignature(payload, testSecret, now.Unix())

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		now     time.Time
		wantErr bool
	}{
		{"valid", payload, valid, testSecret, now, false},
		{"within tolerance", payload, valid, testSecret, now.Add(4 * time.Minute), false},
		{"rotated secret second entry", payload, fmt.Sprintf("t=%d,v1=%s,v1=%s", now.Unix(), strings.Repeat("0", 64), sig), testSecret, now, false},
		{"spaces around pairs", payload, fmt.Sprintf("t=%d, v1=%s", now.Unix(), sig), testSecret, now, false},
		{"wrong secret", payload, valid, "other", now, true},
		{"tampered payload", []byte(`{"id":"evt_2"}`), valid, testSecret, now, true},
		{"stale", payload, valid, testSecret, now.Add(6 * time.Minute), true},
		{"future", payload, valid, testSecret, now.Add(-6 * time.Minute), true},
		{"missing header", payload, "", testSecret, now, true},
		{"no timestamp", payload, "v1=" + sig, testSecret, now, true},
		{"bad timestamp", payload, "t=abc,v1=" + sig, testSecret, now, true},
		{"no v1", payload, fmt.Sprintf("t=%d,v0=%s", now.Unix(), sig), testSecret, now, true},
		{"garbage", payload, "not a header", testSecret, now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.payload, tt.header, tt.secret, DefaultTolerance, tt.now)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSignature) {
					t.Errorf("err = %v, want ErrInvalidSignature", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifySignature_ZeroToleranceSkipsClock(t *testing.T) {
	payload := []byte(`{}`)
	header := SignPayload(payload, testSecret, time.Unix(1000, 0))

	if err := VerifySignature(payload, header, testSecret, 0, time.Now()); err != nil {
		t.Errorf("zero tolerance should not check the clock: %v", err)
	}
}

func TestSignatureError_Reason(t *testing.T) {
	err := VerifySignature([]byte(`{}`), "", testSecret, DefaultTolerance, time.Now())

	var sigErr *SignatureError
	if !errors.As(err, &sigErr) {
		t.Fatalf("err = %T, want *SignatureError", err)
	}
	if sigErr.Reason != "missing header" {
		t.Errorf("Reason = %q", sigErr.Reason)
	}
}

func TestVerifySignature_InteropWithProcessorSDK(t *testing.T) {
	payload := []byte(`{"id":"evt_sdk","type":"checkout.session.completed"}`)
	now := time.Unix(1736600000, 0)

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: now,
	})
	if signed.Header != SignPayload(payload, testSecret, now) {
		t.Errorf("SignPayload = %q, sdk header = %q", SignPayload(payload, testSecret, now), signed.Header)
	}
	if err := VerifySignature(payload, signed.Header, testSecret, DefaultTolerance, now); err != nil {
		t.Errorf("sdk-signed header rejected: %v", err)
	}
	if err := stripewebhook.ValidatePayloadIgnoringTolerance(payload, SignPayload(payload, testSecret, now), testSecret); err != nil {
		t.Errorf("sdk rejected our header: %v", err)
	}
}

func TestVerifySignature_WrongSecretReason(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Unix(1736600000, 0)

	err := VerifySignature(payload, SignPayload(payload, "whsec_other", now), testSecret, DefaultTolerance, now)

	var sigErr *SignatureError
	if !errors.As(err, &sigErr) {
		t.Fatalf("err = %T, want *SignatureError", err)
	}
	if sigErr.Reason != "no matching signature" {
		t.Errorf("Reason = %q", sigErr.Reason)
	}
}

func TestSDKSignatureError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{stripewebhook.ErrNotSigned, "missing header"},
		{stripewebhook.ErrInvalidHeader, "malformed header"},
		{stripewebhook.ErrTooOld, "timestamp outside tolerance"},
		{stripewebhook.ErrNoValidSignature, "no matching signature"},
	}
	for _, tt := range tests {
		err := sdkSignatureError(tt.err)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("%v: not ErrInvalidSignature", tt.err)
		}
		var sigErr *SignatureError
		if errors.As(err, &sigErr) && sigErr.Reason != tt.want {
			t.Errorf("%v: Reason = %q, want %q", tt.err, sigErr.Reason, tt.want)
		}
	}
}
