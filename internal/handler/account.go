package handler

import (
	"log/slog"
	"net/http"

	"github.com/shelfkit/shelfkit/internal/auth"
	"github.com/shelfkit/shelfkit/internal/handler/dto"
	"github.com/shelfkit/shelfkit/internal/service"
)

// AccountHandler serves registration and payout onboarding.
type AccountHandler struct {
	svc    *service.AccountService
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger}
}

// Register handles POST /accounts. The API key appears only in this response.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	reg, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Name:     req.Name,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RegisterResponse{
		Account:      dto.ToAccountResponse(reg.Account),
		APIKey:       reg.APIKey,
		ClaimsLinked: reg.ClaimsLinked,
	})
}

// Me handles GET /accounts/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.GetAccount(r.Context(), auth.AccountIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToAccountResponse(account))
}

// PayoutLink handles POST /accounts/me/payouts/link.
func (h *AccountHandler) PayoutLink(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.PayoutLink(r.Context(), auth.AccountIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PayoutLinkResponse{URL: url})
}

// PayoutStatus handles GET /accounts/me/payouts.
func (h *AccountHandler) PayoutStatus(w http.ResponseWriter, r *http.Request) {
	submitted, err := h.svc.PayoutStatus(r.Context(), auth.AccountIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PayoutStatusResponse{DetailsSubmitted: submitted})
}
