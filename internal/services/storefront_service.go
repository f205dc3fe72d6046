package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/repositories"
)

var errStorefrontRepositoryRequired = errors.New("storefront service: store product repository is required")

// StorefrontServiceDeps wires the catalog read dependency for public listings.
type StorefrontServiceDeps struct {
	StoreProducts repositories.StoreProductRepository
	Logger        func(context.Context, string, map[string]any)
}

type storefrontService struct {
	products repositories.StoreProductRepository
	logger   func(context.Context, string, map[string]any)
}

// NewStorefrontService constructs a StorefrontService.
func NewStorefrontService(deps StorefrontServiceDeps) (StorefrontService, error) {
	if deps.StoreProducts == nil {
		return nil, errStorefrontRepositoryRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &storefrontService{
		products: deps.StoreProducts,
		logger:   logger,
	}, nil
}

// GetStoreProduct returns a single published listing. Unpublished listings are
// hidden from the public surface as if absent.
func (s *storefrontService) GetStoreProduct(ctx context.Context, storeProductID string) (StoreProduct, error) {
	if s == nil || s.products == nil {
		return StoreProduct{}, ErrBackendUnavailable
	}
	storeProductID = strings.TrimSpace(storeProductID)
	if storeProductID == "" {
		return StoreProduct{}, fmt.Errorf("%w: store product id", ErrMissingField)
	}

	product, err := s.products.FindByID(ctx, storeProductID)
	if err != nil {
		return StoreProduct{}, translateRepoError(err)
	}
	if !product.IsPublished {
		return StoreProduct{}, fmt.Errorf("%w: store product %s", ErrNotFound, storeProductID)
	}
	return product, nil
}

// ListStoreProducts returns a page of published listings.
func (s *storefrontService) ListStoreProducts(ctx context.Context, filter StoreProductFilter) (domain.CursorPage[StoreProduct], error) {
	if s == nil || s.products == nil {
		return domain.CursorPage[StoreProduct]{}, ErrBackendUnavailable
	}

	page, err := s.products.ListPublished(ctx, repositories.StoreProductListFilter{
		FarmID:     strings.TrimSpace(filter.FarmID),
		Category:   strings.TrimSpace(filter.Category),
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[StoreProduct]{}, translateRepoError(err)
	}
	return page, nil
}
