package repositories

import (
	"context"
	"time"

	domain "github.com/farmstand/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository persists customer cart lines, one line per store product.
type CartRepository interface {
	ListLines(ctx context.Context, customerID string) ([]domain.CartLine, error)
	GetLine(ctx context.Context, customerID string, storeProductID string) (domain.CartLine, error)
	PutLine(ctx context.Context, line domain.CartLine) (domain.CartLine, error)
	DeleteLine(ctx context.Context, customerID string, storeProductID string) error
	// ReplaceAll atomically removes every existing line and inserts the given
	// set in a single transaction.
	ReplaceAll(ctx context.Context, customerID string, lines []domain.CartLine) ([]domain.CartLine, error)
	Clear(ctx context.Context, customerID string) error
}

// StoreProductRepository reads storefront listings backing cart validation and checkout.
type StoreProductRepository interface {
	FindByID(ctx context.Context, storeProductID string) (domain.StoreProduct, error)
	FindMany(ctx context.Context, storeProductIDs []string) (map[string]domain.StoreProduct, error)
	ListPublished(ctx context.Context, filter StoreProductListFilter) (domain.CursorPage[domain.StoreProduct], error)
}

// StockAdjustment names a store product and the quantity to add or remove
// from its available stock.
type StockAdjustment struct {
	StoreProductID string
	Quantity       int
}

// OrderRepository persists orders. Stock-coupled writes run the order mutation
// and the store product stock adjustments in one Firestore transaction.
type OrderRepository interface {
	// CreateWithStockDecrement writes the order and decrements available stock
	// for every adjustment, failing the whole transaction when any product is
	// missing, unpublished, or short on stock.
	CreateWithStockDecrement(ctx context.Context, order domain.Order, adjustments []StockAdjustment) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// Update overwrites the order after re-reading it in the transaction and
	// verifying its stored status still equals expected. A mismatch fails with
	// a stale-status stock error so callers retry from a fresh read.
	Update(ctx context.Context, order domain.Order, expected domain.OrderStatus) (domain.Order, error)
	// UpdateWithStockRestore writes the order and increments available stock
	// for every adjustment, guarded by the same expected-status check so a
	// concurrent cancellation cannot credit stock twice. Adjustments whose
	// store product no longer exists are skipped rather than failing the
	// transaction.
	UpdateWithStockRestore(ctx context.Context, order domain.Order, expected domain.OrderStatus, adjustments []StockAdjustment) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// ProductRepository reads farm-held stock records and batch costing inputs.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// BatchTotals sums expense amounts and product quantities across a batch.
	BatchTotals(ctx context.Context, farmID string, batchID string) (domain.BatchCostTotals, error)
}

// SaleReversalResult reports the outcome of a sale reversal.
type SaleReversalResult struct {
	Sale            domain.Sale
	ProductRestored bool
}

// SaleRepository persists direct sales together with product stock mutations.
type SaleRepository interface {
	// InsertWithStockDecrement writes the sale, decrements the product
	// quantity, and flips the product status to sold when it reaches zero,
	// all in one transaction.
	InsertWithStockDecrement(ctx context.Context, sale domain.Sale) (domain.Sale, error)
	FindByID(ctx context.Context, saleID string) (domain.Sale, error)
	// DeleteWithStockRestore removes the sale and restores the sold quantity
	// to the product, forcing its status back to unsold. When the product no
	// longer exists the sale is still deleted and ProductRestored is false.
	DeleteWithStockRestore(ctx context.Context, saleID string) (SaleReversalResult, error)
	List(ctx context.Context, filter SaleListFilter) (domain.CursorPage[domain.Sale], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type StoreProductListFilter struct {
	FarmID     string
	Category   string
	Pagination domain.Pagination
}

type OrderListFilter struct {
	CustomerID string
	FarmID     string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type SaleListFilter struct {
	FarmID     string
	ProductID  string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
