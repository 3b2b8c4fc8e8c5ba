package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfkit/shelfkit/internal/auth"
	"github.com/shelfkit/shelfkit/internal/handler/dto"
	"github.com/shelfkit/shelfkit/internal/model"
	"github.com/shelfkit/shelfkit/internal/service"
)

// CheckoutHandler starts purchases.
type CheckoutHandler struct {
	checkout *service.CheckoutService
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout *service.CheckoutService, accounts *service.AccountService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, accounts: accounts, logger: logger}
}

// Create handles POST /p/{slug}/checkout. Guests may buy; an authenticated
// caller is passed as the buyer.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var buyer *model.Account
	if accountID := auth.AccountIDFromContext(r.Context()); accountID != "" {
		account, err := h.accounts.GetAccount(r.Context(), accountID)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		buyer = account
	}

	session, err := h.checkout.CreateCheckoutSession(r.Context(), chi.URLParam(r, "slug"), buyer)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.CheckoutResponse{SessionID: session.ID, URL: session.URL})
}
