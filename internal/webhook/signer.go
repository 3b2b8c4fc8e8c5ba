// Package webhook verifies and routes inbound payment processor events.
package webhook

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v76/webhook"
)

var (
	// ErrInvalidSignature is returned when the signature header is missing,
	// malformed, stale, or matches no expected signature.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMalformedPayload is returned when a verified payload cannot be decoded.
	ErrMalformedPayload = errors.New("malformed payload")
)

// DefaultTolerance is the accepted clock skew between signing and receipt.
const DefaultTolerance = 5 * time.Minute

const signatureScheme = "v1"

// SignatureError carries the reason a signature was rejected.
// It matches ErrInvalidSignature under errors.Is.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "invalid signature: " + e.Reason
}

func (e *SignatureError) Is(target error) bool {
	return target == ErrInvalidSignature
}

// ComputeSignature returns the hex HMAC-SHA256 of "<timestamp>.<payload>".
func ComputeSignature(payload []byte, secret string, timestamp int64) string {
	return hex.EncodeToString(stripewebhook.ComputeSignature(time.Unix(timestamp, 0), payload, secret))
}

// SignPayload builds a signature header for payload signed at t.
func SignPayload(payload []byte, secret string, t time.Time) string {
	ts := t.Unix()
	return fmt.Sprintf("t=%d,%s=%s", ts, signatureScheme, ComputeSignature(payload, secret, ts))
}

type signedHeader struct {
	timestamp  int64
	signatures []string
}

// String renders h in the canonical "t=..,v1=..,v1=.." form.
func (h *signedHeader) String() string {
	var b strings.Builder
	b.WriteString("t=" + strconv.FormatInt(h.timestamp, 10))
	for _, sig := range h.signatures {
		b.WriteString("," + signatureScheme + "=" + sig)
	}
	return b.String()
}

func parseHeader(header string) (*signedHeader, error) {
	if header == "" {
		return nil, &SignatureError{Reason: "missing header"}
	}

	h := &signedHeader{}
	haveTimestamp := false
	for _, pair := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, &SignatureError{Reason: "bad timestamp"}
			}
			h.timestamp = ts
			haveTimestamp = true
		case signatureScheme:
			h.signatures = append(h.signatures, value)
		}
	}

	if !haveTimestamp {
		return nil, &SignatureError{Reason: "no timestamp"}
	}
	if len(h.signatures) == 0 {
		return nil, &SignatureError{Reason: "no " + signatureScheme + " signature"}
	}
	return h, nil
}

// VerifySignature checks header against payload at now. Any v1 entry may
// match, which allows secret rotation on the sender's side.
//
// Skew is checked here in both directions against now; the signature
// match itself is done by the processor's SDK on the canonical header.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	h, err := parseHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		skew := now.Unix() - h.timestamp
		if skew < 0 {
			skew = -skew
		}
		if skew > int64(tolerance.Seconds()) {
			return &SignatureError{Reason: "timestamp outside tolerance"}
		}
	}

	if err := stripewebhook.ValidatePayloadIgnoringTolerance(payload, h.String(), secret); err != nil {
		return sdkSignatureError(err)
	}
	return nil
}

func sdkSignatureError(err error) error {
	switch {
	case errors.Is(err, stripewebhook.ErrNotSigned):
		return &SignatureError{Reason: "missing header"}
	case errors.Is(err, stripewebhook.ErrInvalidHeader):
		return &SignatureError{Reason: "malformed header"}
	case errors.Is(err, stripewebhook.ErrTooOld):
		return &SignatureError{Reason: "timestamp outside tolerance"}
	default:
		return &SignatureError{Reason: "no matching signature"}
	}
}
