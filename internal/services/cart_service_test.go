package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/farmstand/api/internal/domain"
)

func newTestCartService(t *testing.T, carts *stubCartRepository, products *stubStoreProductRepository) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{
		Carts:         carts,
		StoreProducts: products,
		Clock:         testClock,
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc
}

func TestCartServiceAddCreatesLine(t *testing.T) {
	carts := newStubCartRepository()
	products := newStubStoreProductRepository(domain.StoreProduct{
		ID: "sp-1", FarmID: "farm-1", Name: "Carrots", SellingPrice: 300,
		AvailableStock: 10, IsPublished: true,
	})
	svc := newTestCartService(t, carts, products)

	line, err := svc.AddOrUpdateLine(context.Background(), AddCartLineCommand{
		CustomerID:     "cust-1",
		StoreProductID: "sp-1",
		Quantity:       2,
	})
	if err != nil {
		t.Fatalf("AddOrUpdateLine: %v", err)
	}
	if line.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", line.Quantity)
	}
	if !line.AddedAt.Equal(testClock()) {
		t.Fatalf("expected addedAt from clock, got %v", line.AddedAt)
	}
}

func TestCartServiceAddSumsExistingQuantity(t *testing.T) {
	carts := newStubCartRepository()
	products := newStubStoreProductRepository(domain.StoreProduct{
		ID: "sp-1", FarmID: "farm-1", AvailableStock: 10, IsPublished: true,
	})
	svc := newTestCartService(t, carts, products)

	ctx := context.Background()
	if _, err := svc.AddOrUpdateLine(ctx, AddCartLineCommand{CustomerID: "cust-1", StoreProductID: "sp-1", Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	line, err := svc.AddOrUpdateLine(ctx, AddCartLineCommand{CustomerID: "cust-1", StoreProductID: "sp-1", Quantity: 3})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if line.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", line.Quantity)
	}
	if carts.lineCount("cust-1") != 1 {
		t.Fatalf("expected a single merged line")
	}
}

func TestCartServiceAddRejectsUnknownProduct(t *testing.T) {
	svc := newTestCartService(t, newStubCartRepository(), newStubStoreProductRepository())

	_, err := svc.AddOrUpdateLine(context.Background(), AddCartLineCommand{
		CustomerID: "cust-1", StoreProductID: "ghost", Quantity: 1,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCartServiceAddRejectsUnpublishedOrOutOfStock(t *testing.T) {
	products := newStubStoreProductRepository(
		domain.StoreProduct{ID: "sp-hidden", AvailableStock: 5, IsPublished: false},
		domain.StoreProduct{ID: "sp-empty", AvailableStock: 0, IsPublished: true},
	)
	svc := newTestCartService(t, newStubCartRepository(), products)
	ctx := context.Background()

	if _, err := svc.AddOrUpdateLine(ctx, AddCartLineCommand{CustomerID: "c", StoreProductID: "sp-hidden", Quantity: 1}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for unpublished, got %v", err)
	}
	if _, err := svc.AddOrUpdateLine(ctx, AddCartLineCommand{CustomerID: "c", StoreProductID: "sp-empty", Quantity: 1}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty stock, got %v", err)
	}
}

func TestCartServiceAddRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestCartService(t, newStubCartRepository(), newStubStoreProductRepository())

	_, err := svc.AddOrUpdateLine(context.Background(), AddCartLineCommand{
		CustomerID: "c", StoreProductID: "sp-1", Quantity: 0,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCartServiceSyncReplacesCart(t *testing.T) {
	carts := newStubCartRepository()
	products := newStubStoreProductRepository(
		domain.StoreProduct{ID: "sp-1", FarmID: "farm-1", AvailableStock: 10, IsPublished: true},
		domain.StoreProduct{ID: "sp-2", FarmID: "farm-2", AvailableStock: 4, IsPublished: true},
	)
	svc := newTestCartService(t, carts, products)
	ctx := context.Background()

	if _, err := svc.AddOrUpdateLine(ctx, AddCartLineCommand{CustomerID: "cust-1", StoreProductID: "sp-1", Quantity: 9}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	lines, err := svc.SyncCart(ctx, SyncCartCommand{
		CustomerID: "cust-1",
		Items: []SyncCartItem{
			{StoreProductID: "sp-1", Quantity: 2},
			{StoreProductID: "sp-2", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("SyncCart: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if carts.lineCount("cust-1") != 2 {
		t.Fatalf("expected cart replaced with 2 lines")
	}
}

func TestCartServiceSyncIsAllOrNothing(t *testing.T) {
	carts := newStubCartRepository()
	products := newStubStoreProductRepository(
		domain.StoreProduct{ID: "sp-1", AvailableStock: 10, IsPublished: true},
		domain.StoreProduct{ID: "sp-2", AvailableStock: 1, IsPublished: true},
	)
	svc := newTestCartService(t, carts, products)
	ctx := context.Background()

	if _, err := svc.AddOrUpdateLine(ctx, AddCartLineCommand{CustomerID: "cust-1", StoreProductID: "sp-1", Quantity: 4}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	_, err := svc.SyncCart(ctx, SyncCartCommand{
		CustomerID: "cust-1",
		Items: []SyncCartItem{
			{StoreProductID: "sp-1", Quantity: 2},
			{StoreProductID: "sp-2", Quantity: 5},
		},
	})
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ItemID != "sp-2" || stockErr.Available != 1 || stockErr.Requested != 5 {
		t.Fatalf("unexpected stock error detail: %+v", stockErr)
	}

	// Existing cart untouched after the failed sync.
	existing, err := svc.GetCart(ctx, "cust-1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(existing) != 1 || existing[0].StoreProductID != "sp-1" || existing[0].Quantity != 4 {
		t.Fatalf("expected original cart preserved, got %+v", existing)
	}
}

func TestCartServiceSyncEmptyClearsCart(t *testing.T) {
	carts := newStubCartRepository()
	products := newStubStoreProductRepository(domain.StoreProduct{ID: "sp-1", AvailableStock: 10, IsPublished: true})
	svc := newTestCartService(t, carts, products)
	ctx := context.Background()

	if _, err := svc.AddOrUpdateLine(ctx, AddCartLineCommand{CustomerID: "cust-1", StoreProductID: "sp-1", Quantity: 1}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	lines, err := svc.SyncCart(ctx, SyncCartCommand{CustomerID: "cust-1"})
	if err != nil {
		t.Fatalf("SyncCart: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty result, got %d lines", len(lines))
	}
	if carts.lineCount("cust-1") != 0 {
		t.Fatalf("expected cart cleared")
	}
}

func TestCartServiceRemoveLineRequiresOwnership(t *testing.T) {
	carts := newStubCartRepository()
	products := newStubStoreProductRepository(domain.StoreProduct{ID: "sp-1", AvailableStock: 5, IsPublished: true})
	svc := newTestCartService(t, carts, products)
	ctx := context.Background()

	if _, err := svc.AddOrUpdateLine(ctx, AddCartLineCommand{CustomerID: "cust-1", StoreProductID: "sp-1", Quantity: 1}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	if err := svc.RemoveLine(ctx, "cust-2", "sp-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign cart, got %v", err)
	}
	if err := svc.RemoveLine(ctx, "cust-1", "sp-1"); err != nil {
		t.Fatalf("RemoveLine: %v", err)
	}
	if carts.lineCount("cust-1") != 0 {
		t.Fatalf("expected line removed")
	}
}

func TestCartServiceAddEnforcesQuantityLimit(t *testing.T) {
	carts := newStubCartRepository()
	products := newStubStoreProductRepository(domain.StoreProduct{ID: "sp-1", AvailableStock: 5000, IsPublished: true})
	svc, err := NewCartService(CartServiceDeps{
		Carts:           carts,
		StoreProducts:   products,
		Clock:           func() time.Time { return testClock() },
		MaxLineQuantity: 10,
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	_, err = svc.AddOrUpdateLine(context.Background(), AddCartLineCommand{
		CustomerID: "cust-1", StoreProductID: "sp-1", Quantity: 11,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput over the limit, got %v", err)
	}
}
