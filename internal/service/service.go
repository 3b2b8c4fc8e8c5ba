// Package service provides business logic for the application.
package service

import (
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Service errors.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrEmailExists         = errors.New("email already registered")
	ErrUsernameExists      = errors.New("username already taken")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrInvalidUsername     = errors.New("invalid username")
	ErrProductNotFound     = errors.New("product not found")
	ErrProductUnavailable  = errors.New("product is not available for purchase")
	ErrSellerNotPayable    = errors.New("seller has no payout account")
	ErrSlugExists          = errors.New("slug already exists")
	ErrInvalidSlug         = errors.New("invalid slug")
	ErrInvalidName         = errors.New("invalid product name")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidCallToAction = errors.New("invalid call to action")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrPayeeUnavailable    = errors.New("payout account unavailable")
)

func generateULID() string {
	return ulid.Make().String()
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
