package payments

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
)

// Error is an API error returned by the processor.
type Error struct {
	HTTPStatus int
	Type       string
	Code       string
	Message    string
	Param      string
	RequestID  string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payments: %s (%s, status %d): %s", e.Type, e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("payments: %s (status %d): %s", e.Type, e.HTTPStatus, e.Message)
}

// IsNotFound reports whether err is a processor 404.
func IsNotFound(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.HTTPStatus == http.StatusNotFound
}

// wrapError maps SDK errors onto *Error. Transport failures and
// undecodable responses are wrapped with op and returned as is.
func wrapError(op string, err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return &Error{
			HTTPStatus: serr.HTTPStatusCode,
			Type:       string(serr.Type),
			Code:       string(serr.Code),
			Message:    serr.Msg,
			Param:      serr.Param,
			RequestID:  serr.RequestID,
		}
	}
	return fmt.Errorf("payments: %s: %w", op, err)
}
