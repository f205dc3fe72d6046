package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps a page of results together with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// CartLine is a single customer cart entry. A customer holds at most one line
// per store product; repeat adds merge into the existing line.
type CartLine struct {
	ID             string
	CustomerID     string
	StoreProductID string
	Quantity       int
	AddedAt        time.Time
	UpdatedAt      time.Time
}

// StoreProduct is a storefront listing. AvailableStock is the reservable
// inventory pool and must never go negative.
type StoreProduct struct {
	ID             string
	ProductID      string
	FarmID         string
	Name           string
	Category       string
	Unit           string
	SellingPrice   int64
	AvailableStock int
	IsPublished    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderStatus describes lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates a freshly placed order awaiting review.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the farm accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusWaitingForPayment indicates the order awaits customer payment.
	OrderStatusWaitingForPayment OrderStatus = "waiting_for_payment"
	// OrderStatusProcessing indicates the farm is preparing the order.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusInTransit indicates the order was handed to a courier.
	OrderStatusInTransit OrderStatus = "in_transit"
	// OrderStatusDelivered indicates the order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled and its stock restored. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// OrderItem is an immutable order line captured at placement time. Unit price
// and descriptive fields are snapshots of the store product at purchase.
type OrderItem struct {
	StoreProductID string
	ProductName    string
	Category       string
	Unit           string
	Quantity       int
	UnitPrice      int64
	LineTotal      int64
}

// Order groups the items of a single farm purchased by one customer. A
// multi-farm checkout produces multiple sibling orders that share no state.
type Order struct {
	ID                 string
	Number             string
	CustomerID         string
	FarmID             string
	Items              []OrderItem
	TotalAmount        int64
	DeliveryFee        *int64
	FinalAmount        int64
	Status             OrderStatus
	CancellationReason *string
	CourierContact     *string
	CourierRefID       *string
	PaymentInfo        *string
	Phone              string
	Address            string
	ConfirmedAt        *time.Time
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ProductStatus marks whether farm-held stock has been fully sold off.
type ProductStatus string

const (
	// ProductStatusUnsold indicates remaining sellable quantity.
	ProductStatusUnsold ProductStatus = "unsold"
	// ProductStatusSold indicates the quantity reached zero through sales.
	ProductStatusSold ProductStatus = "sold"
)

// Product is farm-held physical stock. Its quantity pool is independent from
// the storefront listing stock; orders and direct sales never touch the same pool.
type Product struct {
	ID         string
	FarmID     string
	Name       string
	Quantity   int
	UnitPrice  int64
	TotalValue int64
	BatchID    string
	Status     ProductStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProductBatch groups products and expenses for cost amortisation.
type ProductBatch struct {
	ID        string
	FarmID    string
	Name      string
	CreatedAt time.Time
}

// ExpenseRecord is a read-only costing input attributed to a batch.
type ExpenseRecord struct {
	ID        string
	FarmID    string
	Amount    int64
	BatchID   string
	CreatedAt time.Time
}

// Sale records a direct farm-manager sale. UnitCost and Profit carry the
// fractional precision of the per-unit expense share.
type Sale struct {
	ID           string
	ProductID    string
	FarmID       string
	QuantitySold int
	PricePerUnit int64
	TotalAmount  int64
	UnitCost     decimal.Decimal
	Profit       decimal.Decimal
	SaleDate     time.Time
	CreatedAt    time.Time
}

// BatchCostTotals aggregates the costing inputs of a single batch.
type BatchCostTotals struct {
	ExpenseTotal  int64
	QuantityTotal int
}

// HealthStatus grades the outcome of a dependency probe.
type HealthStatus string

const (
	// HealthStatusOK indicates the dependency responded within its timeout.
	HealthStatusOK HealthStatus = "ok"
	// HealthStatusDegraded indicates the dependency answered with an error.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusError indicates the dependency timed out or was cancelled.
	HealthStatusError HealthStatus = "error"
)

// SystemHealthCheck is the probe outcome of a single dependency.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes for readiness checks.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
