package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/farmstand/api/internal/domain"
)

func newTestStorefrontService(t *testing.T, products ...domain.StoreProduct) StorefrontService {
	t.Helper()
	svc, err := NewStorefrontService(StorefrontServiceDeps{
		StoreProducts: newStubStoreProductRepository(products...),
	})
	if err != nil {
		t.Fatalf("NewStorefrontService: %v", err)
	}
	return svc
}

func TestStorefrontGetHidesUnpublished(t *testing.T) {
	svc := newTestStorefrontService(t,
		domain.StoreProduct{ID: "sp-live", Name: "Apples", IsPublished: true, AvailableStock: 3},
		domain.StoreProduct{ID: "sp-draft", Name: "Pears", IsPublished: false, AvailableStock: 3},
	)
	ctx := context.Background()

	product, err := svc.GetStoreProduct(ctx, "sp-live")
	if err != nil {
		t.Fatalf("GetStoreProduct: %v", err)
	}
	if product.Name != "Apples" {
		t.Fatalf("unexpected product %+v", product)
	}

	if _, err := svc.GetStoreProduct(ctx, "sp-draft"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unpublished listing, got %v", err)
	}
	if _, err := svc.GetStoreProduct(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown listing, got %v", err)
	}
}

func TestStorefrontListFiltersByFarmAndCategory(t *testing.T) {
	svc := newTestStorefrontService(t,
		domain.StoreProduct{ID: "sp-1", FarmID: "farm-a", Category: "vegetables", IsPublished: true},
		domain.StoreProduct{ID: "sp-2", FarmID: "farm-a", Category: "dairy", IsPublished: true},
		domain.StoreProduct{ID: "sp-3", FarmID: "farm-b", Category: "vegetables", IsPublished: true},
		domain.StoreProduct{ID: "sp-4", FarmID: "farm-a", Category: "vegetables", IsPublished: false},
	)

	page, err := svc.ListStoreProducts(context.Background(), StoreProductFilter{
		FarmID:   "farm-a",
		Category: "vegetables",
	})
	if err != nil {
		t.Fatalf("ListStoreProducts: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "sp-1" {
		t.Fatalf("unexpected listing page: %+v", page.Items)
	}
}
