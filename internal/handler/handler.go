// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shelfkit/shelfkit/internal/handler/dto"
	"github.com/shelfkit/shelfkit/internal/middleware"
	"github.com/shelfkit/shelfkit/internal/service"
)

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var serviceErrors = []errorMapping{
	{service.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "account not found"},
	{service.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found"},
	{service.ErrEmailExists, http.StatusConflict, "EMAIL_TAKEN", "email already registered"},
	{service.ErrUsernameExists, http.StatusConflict, "USERNAME_TAKEN", "username already taken"},
	{service.ErrSlugExists, http.StatusConflict, "SLUG_TAKEN", "slug already exists"},
	{service.ErrInvalidEmail, http.StatusBadRequest, "INVALID_EMAIL", "invalid email address"},
	{service.ErrInvalidUsername, http.StatusBadRequest, "INVALID_USERNAME", "username must be 3-30 letters, digits or underscores"},
	{service.ErrInvalidSlug, http.StatusBadRequest, "INVALID_SLUG", "slug must be lowercase words joined by hyphens, at most 50 characters"},
	{service.ErrInvalidName, http.StatusBadRequest, "INVALID_NAME", "invalid product name or description"},
	{service.ErrInvalidPrice, http.StatusBadRequest, "INVALID_PRICE", "price must be a non-negative amount with at most two decimals"},
	{service.ErrInvalidCallToAction, http.StatusBadRequest, "INVALID_CALL_TO_ACTION", "unsupported call to action"},
	{service.ErrInvalidURL, http.StatusBadRequest, "INVALID_URL", "URLs must be absolute http or https"},
	{service.ErrProductUnavailable, http.StatusConflict, "PRODUCT_UNAVAILABLE", "product is not available for purchase"},
	{service.ErrSellerNotPayable, http.StatusConflict, "SELLER_NOT_PAYABLE", "seller cannot accept payments yet"},
	{service.ErrPayeeUnavailable, http.StatusBadGateway, "PAYOUTS_UNAVAILABLE", "payout provider unavailable"},
}

// writeServiceError maps service errors to responses. Unknown errors are
// logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, m.message)
			return
		}
	}
	logger.Error("internal_error",
		"error", err,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
}
