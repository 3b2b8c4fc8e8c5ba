package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfkit/shelfkit/internal/metrics"
	"github.com/shelfkit/shelfkit/internal/model"
	"github.com/shelfkit/shelfkit/internal/repository"
)

const (
	maxSlugLen        = 50
	maxNameLen        = 120
	maxDescriptionLen = 5000
	slugRetries       = 3
)

var (
	slugRegex    = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// ProductService manages the catalog and libraries.
type ProductService struct {
	store   repository.Store
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewProductService creates a ProductService.
func NewProductService(store repository.Store, logger *slog.Logger, recorder metrics.Recorder) *ProductService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ProductService{
		store:   store,
		logger:  logger.With("component", "product"),
		metrics: recorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateProductInput contains the fields for a new product.
// Nil Price means model.DefaultPrice. Products start inactive unless Active is set.
type CreateProductInput struct {
	Name         string
	Description  string
	Slug         string
	CoverURL     string
	CallToAction string
	Summary      string
	ContentURL   string
	Price        *decimal.Decimal
	Active       *bool
}

// UpdateProductInput contains optional updates. The slug is immutable.
type UpdateProductInput struct {
	Name         *string
	Description  *string
	CoverURL     *string
	CallToAction *string
	Summary      *string
	ContentURL   *string
	Price        *decimal.Decimal
	Active       *bool
}

// ProductView is a product as seen by one viewer.
type ProductView struct {
	Product   *model.Product
	HasAccess bool
}

// Create validates and stores a new product owned by ownerID.
func (s *ProductService) Create(ctx context.Context, ownerID string, in CreateProductInput) (*model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if len(in.Description) > maxDescriptionLen {
		return nil, fmt.Errorf("%w: description too long", ErrInvalidName)
	}
	for _, u := range []string{in.CoverURL, in.ContentURL} {
		if err := validateOptionalURL(u); err != nil {
			return nil, err
		}
	}

	cta := model.CallToActionWant
	if in.CallToAction != "" {
		cta = model.CallToAction(in.CallToAction)
		if !cta.IsValid() {
			return nil, ErrInvalidCallToAction
		}
	}

	price := model.DefaultPrice
	if in.Price != nil {
		if err := validatePrice(*in.Price); err != nil {
			return nil, err
		}
		price = *in.Price
	}

	active := false
	if in.Active != nil {
		active = *in.Active
	}

	explicitSlug := in.Slug != ""
	slug := in.Slug
	if explicitSlug {
		if !isValidSlug(slug) {
			return nil, ErrInvalidSlug
		}
	} else {
		slug = Slugify(name)
	}

	now := s.now()
	product := &model.Product{
		OwnerID:      ownerID,
		Name:         name,
		Description:  in.Description,
		CoverURL:     in.CoverURL,
		CallToAction: cta,
		Summary:      in.Summary,
		ContentURL:   in.ContentURL,
		Price:        price,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for attempt := 0; ; attempt++ {
		product.ID = generateULID()
		product.Slug = slug
		err := s.store.CreateProduct(ctx, product)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrSlugExists) {
			return nil, fmt.Errorf("create product: %w", err)
		}
		if explicitSlug || attempt >= slugRetries {
			return nil, ErrSlugExists
		}
		slug = withSuffix(Slugify(name), strings.ToLower(product.ID[len(product.ID)-6:]))
	}

	s.metrics.IncProductCreated()
	s.logger.Info("product_created", "product_id", product.ID, "owner_id", ownerID, "slug", product.Slug)
	return product, nil
}

// Get returns the product by slug with the viewer's access. viewerID may be
// empty for guests. Inactive products are hidden from everyone but the owner.
func (s *ProductService) Get(ctx context.Context, slug, viewerID string) (*ProductView, error) {
	product, err := s.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	owner := product.IsOwnedBy(viewerID)
	if !product.Active && !owner {
		return nil, ErrProductNotFound
	}

	view := &ProductView{Product: product, HasAccess: owner}
	if !owner && viewerID != "" {
		has, err := s.store.LibraryHasProduct(ctx, viewerID, product.ID)
		if err != nil {
			return nil, fmt.Errorf("check library: %w", err)
		}
		view.HasAccess = has
	}
	return view, nil
}

// Discover lists active products, newest first.
func (s *ProductService) Discover(ctx context.Context, limit int) ([]*model.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListActiveProducts(ctx, limit)
}

// ListOwned returns every product owned by ownerID.
func (s *ProductService) ListOwned(ctx context.Context, ownerID string) ([]*model.Product, error) {
	return s.store.ListProductsByOwner(ctx, ownerID)
}

// Update applies changes to a product owned by ownerID.
func (s *ProductService) Update(ctx context.Context, ownerID, slug string, in UpdateProductInput) (*model.Product, error) {
	product, err := s.ownedBySlug(ctx, ownerID, slug)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		product.Name = name
	}
	if in.Description != nil {
		if len(*in.Description) > maxDescriptionLen {
			return nil, fmt.Errorf("%w: description too long", ErrInvalidName)
		}
		product.Description = *in.Description
	}
	if in.CoverURL != nil {
		if err := validateOptionalURL(*in.CoverURL); err != nil {
			return nil, err
		}
		product.CoverURL = *in.CoverURL
	}
	if in.ContentURL != nil {
		if err := validateOptionalURL(*in.ContentURL); err != nil {
			return nil, err
		}
		product.ContentURL = *in.ContentURL
	}
	if in.CallToAction != nil {
		cta := model.CallToAction(*in.CallToAction)
		if !cta.IsValid() {
			return nil, ErrInvalidCallToAction
		}
		product.CallToAction = cta
	}
	if in.Summary != nil {
		product.Summary = *in.Summary
	}
	if in.Price != nil {
		if err := validatePrice(*in.Price); err != nil {
			return nil, err
		}
		product.Price = *in.Price
	}
	if in.Active != nil {
		product.Active = *in.Active
	}
	product.UpdatedAt = s.now()

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.metrics.IncProductUpdated()
	s.logger.Info("product_updated", "product_id", product.ID)
	return product, nil
}

// Delete removes a product owned by ownerID.
func (s *ProductService) Delete(ctx context.Context, ownerID, slug string) error {
	product, err := s.ownedBySlug(ctx, ownerID, slug)
	if err != nil {
		return err
	}

	if err := s.store.DeleteProduct(ctx, product.ID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}

	s.metrics.IncProductDeleted()
	s.logger.Info("product_deleted", "product_id", product.ID)
	return nil
}

// Library returns the products in the account's library.
func (s *ProductService) Library(ctx context.Context, accountID string) ([]*model.Product, error) {
	products, err := s.store.ListLibraryProducts(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrLibraryNotFound) {
			return []*model.Product{}, nil
		}
		return nil, err
	}
	return products, nil
}

func (s *ProductService) getBySlug(ctx context.Context, slug string) (*model.Product, error) {
	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// ownedBySlug hides other owners' products behind ErrProductNotFound.
func (s *ProductService) ownedBySlug(ctx context.Context, ownerID, slug string) (*model.Product, error) {
	product, err := s.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !product.IsOwnedBy(ownerID) {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// Slugify derives a slug from a product name. Names with no usable
// characters produce "product".
func Slugify(name string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		return "product"
	}
	return s
}

func withSuffix(base, suffix string) string {
	if max := maxSlugLen - len(suffix) - 1; len(base) > max {
		base = strings.TrimRight(base[:max], "-")
	}
	return base + "-" + suffix
}

func isValidSlug(slug string) bool {
	return len(slug) <= maxSlugLen && slugRegex.MatchString(slug)
}

func validateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return ErrInvalidName
	}
	return nil
}

func validatePrice(p decimal.Decimal) error {
	if p.IsNegative() || !p.Equal(p.Truncate(2)) {
		return ErrInvalidPrice
	}
	return nil
}

func validateOptionalURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
