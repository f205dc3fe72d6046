package services

import (
	"context"
	"time"

	domain "github.com/farmstand/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	CartLine           = domain.CartLine
	StoreProduct       = domain.StoreProduct
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	Product            = domain.Product
	Sale               = domain.Sale
	SystemHealthReport = domain.SystemHealthReport
)

// Actor identifies the authenticated caller of a service operation. FarmID is
// only set for farm managers and scopes their reads and writes to one farm.
type Actor struct {
	ID     string
	Role   string
	FarmID string
}

// Actor roles as carried by bearer tokens.
const (
	ActorRoleCustomer    = "customer"
	ActorRoleFarmManager = "farm_manager"
	ActorRoleAdmin       = "admin"
)

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == ActorRoleAdmin }

// IsFarmManager reports whether the actor holds the farm manager role.
func (a Actor) IsFarmManager() bool { return a.Role == ActorRoleFarmManager }

// CartService manages per-customer cart lines. Adding to the cart never
// reserves stock; reservation happens only at order placement.
type CartService interface {
	GetCart(ctx context.Context, customerID string) ([]CartLine, error)
	AddOrUpdateLine(ctx context.Context, cmd AddCartLineCommand) (CartLine, error)
	SyncCart(ctx context.Context, cmd SyncCartCommand) ([]CartLine, error)
	RemoveLine(ctx context.Context, customerID string, storeProductID string) error
	Clear(ctx context.Context, customerID string) error
}

// OrderService converts cart or explicit line items into per-farm orders and
// drives each order through its status lifecycle.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlaceOrderResult, error)
	PlaceOrderFromCart(ctx context.Context, cmd PlaceOrderFromCartCommand) (PlaceOrderResult, error)
	GetOrder(ctx context.Context, actor Actor, orderID string) (Order, error)
	ListOrders(ctx context.Context, actor Actor, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	SetDeliveryFee(ctx context.Context, cmd SetDeliveryFeeCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// SaleService records direct farm-manager sales with batch-amortised costing
// and reverses them on demand.
type SaleService interface {
	RecordSale(ctx context.Context, cmd RecordSaleCommand) (Sale, error)
	ReverseSale(ctx context.Context, cmd ReverseSaleCommand) (SaleReversal, error)
	GetSale(ctx context.Context, actor Actor, saleID string) (Sale, error)
	ListSales(ctx context.Context, actor Actor, filter SaleListFilter) (domain.CursorPage[Sale], error)
}

// StorefrontService serves public product listings.
type StorefrontService interface {
	GetStoreProduct(ctx context.Context, storeProductID string) (StoreProduct, error)
	ListStoreProducts(ctx context.Context, filter StoreProductFilter) (domain.CursorPage[StoreProduct], error)
}

// SystemService aggregates utility endpoints (health checks, counters).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error)
}

// OrderEvent describes an order lifecycle notification for downstream consumers.
type OrderEvent struct {
	Type       string
	OrderID    string
	Number     string
	CustomerID string
	FarmID     string
	Status     OrderStatus
	OccurredAt time.Time
}

// SaleEvent describes a sale lifecycle notification for downstream consumers.
type SaleEvent struct {
	Type       string
	SaleID     string
	ProductID  string
	FarmID     string
	OccurredAt time.Time
}

// OrderEventPublisher accepts order lifecycle notifications. Publishing is
// best effort; failures are logged and never fail the triggering operation.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// SaleEventPublisher accepts sale lifecycle notifications, best effort.
type SaleEventPublisher interface {
	PublishSaleEvent(ctx context.Context, event SaleEvent) error
}

// Command and DTO definitions ------------------------------------------------

type AddCartLineCommand struct {
	CustomerID     string
	StoreProductID string
	Quantity       int
}

type SyncCartItem struct {
	StoreProductID string
	Quantity       int
}

type SyncCartCommand struct {
	CustomerID string
	Items      []SyncCartItem
}

type OrderLineRequest struct {
	StoreProductID string
	Quantity       int
}

type PlaceOrderCommand struct {
	CustomerID string
	Items      []OrderLineRequest
	Phone      string
	Address    string
}

type PlaceOrderFromCartCommand struct {
	CustomerID string
	Phone      string
	Address    string
}

// PlaceOrderResult reports the per-farm orders created by one placement. A
// multi-farm placement is not atomic as a whole; callers detect partial
// success by comparing Orders against the farms they requested.
type PlaceOrderResult struct {
	Orders []Order
}

type OrderListFilter struct {
	CustomerID string
	FarmID     string
	Status     []OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

type OrderStatusTransitionCommand struct {
	Actor              Actor
	OrderID            string
	TargetStatus       OrderStatus
	DeliveryFee        *int64
	CancellationReason *string
	CourierContact     *string
	CourierRefID       *string
	PaymentInfo        *string
}

type SetDeliveryFeeCommand struct {
	Actor   Actor
	OrderID string
	Fee     int64
}

type CancelOrderCommand struct {
	Actor   Actor
	OrderID string
	Reason  string
}

type RecordSaleCommand struct {
	Actor        Actor
	ProductID    string
	QuantitySold int
	PricePerUnit int64
	SaleDate     *time.Time
}

type ReverseSaleCommand struct {
	Actor  Actor
	SaleID string
}

// SaleReversal reports the removed sale and whether product stock could be
// restored. Stock restoration is skipped when the product no longer exists.
type SaleReversal struct {
	Sale            Sale
	ProductRestored bool
}

type SaleListFilter struct {
	FarmID     string
	ProductID  string
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

type StoreProductFilter struct {
	FarmID     string
	Category   string
	Pagination Pagination
}

type CounterCommand struct {
	CounterID string
	Step      int64
}
