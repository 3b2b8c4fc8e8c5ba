package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shelfkit/shelfkit/internal/auth"
	"github.com/shelfkit/shelfkit/internal/handler/dto"
	"github.com/shelfkit/shelfkit/internal/service"
)

// ProductHandler serves the catalog and libraries.
type ProductHandler struct {
	svc    *service.ProductService
	logger *slog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{svc: svc, logger: logger}
}

// Discover handles GET /discover.
func (h *ProductHandler) Discover(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	products, err := h.svc.Discover(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToProductList(products, false))
}

// Detail handles GET /p/{slug}. Authentication is optional.
func (h *ProductHandler) Detail(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.Context(), chi.URLParam(r, "slug"), auth.AccountIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProductDetailResponse{
		ProductResponse: dto.ToProductResponse(view.Product, view.HasAccess),
		HasAccess:       view.HasAccess,
	})
}

// ListOwned handles GET /products.
func (h *ProductHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListOwned(r.Context(), auth.AccountIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToProductList(products, true))
}

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	product, err := h.svc.Create(r.Context(), auth.AccountIDFromContext(r.Context()), service.CreateProductInput{
		Name:         req.Name,
		Description:  req.Description,
		Slug:         req.Slug,
		CoverURL:     req.CoverURL,
		CallToAction: req.CallToAction,
		Summary:      req.Summary,
		ContentURL:   req.ContentURL,
		Price:        req.Price,
		Active:       req.Active,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ToProductResponse(product, true))
}

// Update handles PATCH /p/{slug}.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	product, err := h.svc.Update(r.Context(), auth.AccountIDFromContext(r.Context()), chi.URLParam(r, "slug"), service.UpdateProductInput{
		Name:         req.Name,
		Description:  req.Description,
		CoverURL:     req.CoverURL,
		CallToAction: req.CallToAction,
		Summary:      req.Summary,
		ContentURL:   req.ContentURL,
		Price:        req.Price,
		Active:       req.Active,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToProductResponse(product, true))
}

// Delete handles DELETE /p/{slug}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.AccountIDFromContext(r.Context()), chi.URLParam(r, "slug")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Library handles GET /library.
func (h *ProductHandler) Library(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Library(r.Context(), auth.AccountIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToProductList(products, true))
}
