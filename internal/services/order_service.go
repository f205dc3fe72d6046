package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/repositories"
)

var (
	errOrderRepositoryRequired = errors.New("order service: order repository is required")
	errOrderCatalogRequired    = errors.New("order service: store product repository is required")
	errOrderCartsRequired      = errors.New("order service: cart repository is required")
	errOrderCountersRequired   = errors.New("order service: counter repository is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

const (
	orderNumberCounter = "orders"
	orderIDPrefix      = "ord_"

	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status_changed"
)

// orderTransitions is the full legal transition table. Terminal states map to
// an empty target set.
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending: {
		domain.OrderStatusConfirmed,
		domain.OrderStatusWaitingForPayment,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusConfirmed: {
		domain.OrderStatusWaitingForPayment,
		domain.OrderStatusProcessing,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusWaitingForPayment: {
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusProcessing: {
		domain.OrderStatusInTransit,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusInTransit: {
		domain.OrderStatusDelivered,
	},
	domain.OrderStatusDelivered: {},
	domain.OrderStatusCancelled: {},
}

// cancelWindows lists the states each role may cancel from. Admins may cancel
// from any state the transition table allows.
var cancelWindows = map[string][]domain.OrderStatus{
	ActorRoleCustomer:    {domain.OrderStatusPending},
	ActorRoleFarmManager: {domain.OrderStatusPending, domain.OrderStatusConfirmed},
}

// OrderServiceDeps wires the repositories and ambient dependencies for order operations.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	StoreProducts repositories.StoreProductRepository
	Carts         repositories.CartRepository
	Counters      repositories.CounterRepository
	Events        OrderEventPublisher
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(context.Context, string, map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	products repositories.StoreProductRepository
	carts    repositories.CartRepository
	counters repositories.CounterRepository
	events   OrderEventPublisher
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.StoreProducts == nil {
		return nil, errOrderCatalogRequired
	}
	if deps.Carts == nil {
		return nil, errOrderCartsRequired
	}
	if deps.Counters == nil {
		return nil, errOrderCountersRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return orderIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		products: deps.StoreProducts,
		carts:    deps.Carts,
		counters: deps.Counters,
		events:   deps.Events,
		now:      func() time.Time { return deps.Clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// PlaceOrder validates every requested line, partitions them by farm, and
// creates one pending order per farm group. Each farm order commits its stock
// decrement and order write as one transaction; orders already committed stay
// committed when a later group fails, so the returned result can be partial.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlaceOrderResult, error) {
	if s == nil || s.orders == nil {
		return PlaceOrderResult{}, ErrBackendUnavailable
	}
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return PlaceOrderResult{}, fmt.Errorf("%w: customer id", ErrMissingField)
	}
	phone := strings.TrimSpace(cmd.Phone)
	address := strings.TrimSpace(cmd.Address)
	if phone == "" || address == "" {
		return PlaceOrderResult{}, fmt.Errorf("%w: phone and address", ErrMissingField)
	}
	if len(cmd.Items) == 0 {
		return PlaceOrderResult{}, fmt.Errorf("%w: at least one item", ErrInvalidInput)
	}

	// Duplicate product requests merge before validation so stock is checked
	// against the combined quantity.
	quantities := make(map[string]int, len(cmd.Items))
	productOrder := make([]string, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		storeProductID := strings.TrimSpace(item.StoreProductID)
		if storeProductID == "" {
			return PlaceOrderResult{}, fmt.Errorf("%w: store product id on every item", ErrMissingField)
		}
		if item.Quantity <= 0 {
			return PlaceOrderResult{}, fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidInput, storeProductID)
		}
		if _, seen := quantities[storeProductID]; !seen {
			productOrder = append(productOrder, storeProductID)
		}
		quantities[storeProductID] += item.Quantity
	}

	products, err := s.products.FindMany(ctx, productOrder)
	if err != nil {
		return PlaceOrderResult{}, translateRepoError(err)
	}
	for _, storeProductID := range productOrder {
		product, ok := products[storeProductID]
		if !ok {
			return PlaceOrderResult{}, fmt.Errorf("%w: store product %s", ErrNotFound, storeProductID)
		}
		if !product.IsPublished {
			return PlaceOrderResult{}, fmt.Errorf("%w: store product %s", ErrUnavailable, storeProductID)
		}
		if requested := quantities[storeProductID]; product.AvailableStock < requested {
			return PlaceOrderResult{}, &InsufficientStockError{
				ItemID:    storeProductID,
				Available: product.AvailableStock,
				Requested: requested,
			}
		}
	}

	// Partition validated lines by farm, preserving request order.
	farmOrder := make([]string, 0, 2)
	farmLines := make(map[string][]string)
	for _, storeProductID := range productOrder {
		farmID := products[storeProductID].FarmID
		if _, seen := farmLines[farmID]; !seen {
			farmOrder = append(farmOrder, farmID)
		}
		farmLines[farmID] = append(farmLines[farmID], storeProductID)
	}

	now := s.now()
	created := make([]Order, 0, len(farmOrder))
	for _, farmID := range farmOrder {
		order, err := s.buildFarmOrder(ctx, customerID, farmID, farmLines[farmID], quantities, products, phone, address, now)
		if err != nil {
			return PlaceOrderResult{Orders: created}, err
		}

		adjustments := make([]repositories.StockAdjustment, len(order.Items))
		for i, item := range order.Items {
			adjustments[i] = repositories.StockAdjustment{
				StoreProductID: item.StoreProductID,
				Quantity:       item.Quantity,
			}
		}

		saved, err := s.orders.CreateWithStockDecrement(ctx, order, adjustments)
		if err != nil {
			s.logger(ctx, "order.create_failed", map[string]any{
				"customerID": customerID,
				"farmID":     farmID,
				"created":    len(created),
				"error":      err.Error(),
			})
			return PlaceOrderResult{Orders: created}, translateRepoError(err)
		}
		created = append(created, saved)
		s.publishEvent(ctx, OrderEvent{
			Type:       orderEventCreated,
			OrderID:    saved.ID,
			Number:     saved.Number,
			CustomerID: saved.CustomerID,
			FarmID:     saved.FarmID,
			Status:     saved.Status,
			OccurredAt: now,
		})
	}

	// Checkout consumes the whole cart, including lines that arrived as
	// explicit items and lines that were never part of this batch.
	if err := s.carts.Clear(ctx, customerID); err != nil {
		s.logger(ctx, "order.cart_clear_failed", map[string]any{
			"customerID": customerID,
			"error":      err.Error(),
		})
	}

	s.logger(ctx, "order.placed", map[string]any{
		"customerID": customerID,
		"orders":     len(created),
	})
	return PlaceOrderResult{Orders: created}, nil
}

// PlaceOrderFromCart reads the current cart and delegates to PlaceOrder.
func (s *orderService) PlaceOrderFromCart(ctx context.Context, cmd PlaceOrderFromCartCommand) (PlaceOrderResult, error) {
	if s == nil || s.carts == nil {
		return PlaceOrderResult{}, ErrBackendUnavailable
	}
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return PlaceOrderResult{}, fmt.Errorf("%w: customer id", ErrMissingField)
	}

	lines, err := s.carts.ListLines(ctx, customerID)
	if err != nil {
		return PlaceOrderResult{}, translateRepoError(err)
	}
	if len(lines) == 0 {
		return PlaceOrderResult{}, ErrEmptyCart
	}

	items := make([]OrderLineRequest, len(lines))
	for i, line := range lines {
		items[i] = OrderLineRequest{
			StoreProductID: line.StoreProductID,
			Quantity:       line.Quantity,
		}
	}

	return s.PlaceOrder(ctx, PlaceOrderCommand{
		CustomerID: customerID,
		Items:      items,
		Phone:      cmd.Phone,
		Address:    cmd.Address,
	})
}

// GetOrder loads an order the actor is allowed to see.
func (s *orderService) GetOrder(ctx context.Context, actor Actor, orderID string) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrBackendUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id", ErrMissingField)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, translateRepoError(err)
	}
	if err := actorMayAccessOrder(actor, order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// ListOrders lists orders scoped to the actor: customers see their own, farm
// managers their farm's, admins whatever the filter selects.
func (s *orderService) ListOrders(ctx context.Context, actor Actor, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if s == nil || s.orders == nil {
		return domain.CursorPage[Order]{}, ErrBackendUnavailable
	}

	repoFilter := repositories.OrderListFilter{
		CustomerID: strings.TrimSpace(filter.CustomerID),
		FarmID:     strings.TrimSpace(filter.FarmID),
		Status:     filter.Status,
		DateRange:  filter.DateRange,
		Pagination: filter.Pagination,
	}
	switch {
	case actor.IsAdmin():
		// Unscoped.
	case actor.IsFarmManager():
		if strings.TrimSpace(actor.FarmID) == "" {
			return domain.CursorPage[Order]{}, ErrAccessDenied
		}
		repoFilter.FarmID = actor.FarmID
	default:
		repoFilter.CustomerID = actor.ID
	}

	page, err := s.orders.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Order]{}, translateRepoError(err)
	}
	return page, nil
}

// TransitionStatus applies one legal state transition with its side effects.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrBackendUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id", ErrMissingField)
	}
	target := cmd.TargetStatus
	if _, known := orderTransitions[target]; !known {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, translateRepoError(err)
	}
	if err := actorMayAccessOrder(cmd.Actor, order); err != nil {
		return Order{}, err
	}
	if cmd.Actor.Role == ActorRoleCustomer && target != domain.OrderStatusCancelled {
		return Order{}, ErrAccessDenied
	}

	allowed := orderTransitions[order.Status]
	if !containsStatus(allowed, target) {
		return Order{}, &InvalidTransitionError{
			OrderID: order.ID,
			Current: order.Status,
			Target:  target,
			Allowed: allowed,
		}
	}
	if target == domain.OrderStatusCancelled {
		if err := cancelAllowedForRole(cmd.Actor, order.Status); err != nil {
			return Order{}, err
		}
	}

	now := s.now()
	previous := order.Status
	order.Status = target
	order.UpdatedAt = now

	switch target {
	case domain.OrderStatusConfirmed:
		if cmd.DeliveryFee != nil {
			if *cmd.DeliveryFee < 0 {
				return Order{}, fmt.Errorf("%w: delivery fee must not be negative", ErrInvalidInput)
			}
			fee := *cmd.DeliveryFee
			order.DeliveryFee = &fee
		}
		if order.ConfirmedAt == nil {
			confirmedAt := now
			order.ConfirmedAt = &confirmedAt
		}
	case domain.OrderStatusWaitingForPayment:
		if cmd.PaymentInfo != nil {
			info := strings.TrimSpace(*cmd.PaymentInfo)
			order.PaymentInfo = &info
		}
	case domain.OrderStatusInTransit:
		contact := ""
		if cmd.CourierContact != nil {
			contact = strings.TrimSpace(*cmd.CourierContact)
		}
		if contact == "" {
			return Order{}, fmt.Errorf("%w: courier contact", ErrMissingField)
		}
		order.CourierContact = &contact
		if cmd.CourierRefID != nil {
			ref := strings.TrimSpace(*cmd.CourierRefID)
			order.CourierRefID = &ref
		}
		shippedAt := now
		order.ShippedAt = &shippedAt
	case domain.OrderStatusDelivered:
		deliveredAt := now
		order.DeliveredAt = &deliveredAt
	case domain.OrderStatusCancelled:
		reason := ""
		if cmd.CancellationReason != nil {
			reason = strings.TrimSpace(*cmd.CancellationReason)
		}
		if reason == "" {
			return Order{}, fmt.Errorf("%w: cancellation reason", ErrMissingField)
		}
		order.CancellationReason = &reason
		cancelledAt := now
		order.CancelledAt = &cancelledAt
	}

	order.FinalAmount = finalAmount(order)

	var saved Order
	if target == domain.OrderStatusCancelled {
		// Stock restoration happens in the same transaction as the status
		// write so a crash cannot leave a cancelled order with unrestored stock.
		adjustments := make([]repositories.StockAdjustment, len(order.Items))
		for i, item := range order.Items {
			adjustments[i] = repositories.StockAdjustment{
				StoreProductID: item.StoreProductID,
				Quantity:       item.Quantity,
			}
		}
		saved, err = s.orders.UpdateWithStockRestore(ctx, order, previous, adjustments)
	} else {
		saved, err = s.orders.Update(ctx, order, previous)
	}
	if err != nil {
		return Order{}, translateRepoError(err)
	}

	s.logger(ctx, "order.status_changed", map[string]any{
		"orderID": saved.ID,
		"from":    string(previous),
		"to":      string(saved.Status),
	})
	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventStatusChanged,
		OrderID:    saved.ID,
		Number:     saved.Number,
		CustomerID: saved.CustomerID,
		FarmID:     saved.FarmID,
		Status:     saved.Status,
		OccurredAt: now,
	})
	return saved, nil
}

// SetDeliveryFee corrects the quoted delivery fee independent of a status
// change and recomputes the final amount.
func (s *orderService) SetDeliveryFee(ctx context.Context, cmd SetDeliveryFeeCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrBackendUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id", ErrMissingField)
	}
	if cmd.Fee < 0 {
		return Order{}, fmt.Errorf("%w: delivery fee must not be negative", ErrInvalidInput)
	}
	if cmd.Actor.Role == ActorRoleCustomer {
		return Order{}, ErrAccessDenied
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, translateRepoError(err)
	}
	if err := actorMayAccessOrder(cmd.Actor, order); err != nil {
		return Order{}, err
	}
	if order.Status.IsTerminal() {
		return Order{}, fmt.Errorf("%w: order %s is %s", ErrInvalidInput, order.ID, order.Status)
	}

	fee := cmd.Fee
	order.DeliveryFee = &fee
	order.FinalAmount = finalAmount(order)
	order.UpdatedAt = s.now()

	saved, err := s.orders.Update(ctx, order, order.Status)
	if err != nil {
		return Order{}, translateRepoError(err)
	}
	return saved, nil
}

// Cancel is the role-scoped cancellation path; both the customer and the farm
// side converge on the same transition handler.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	reason := cmd.Reason
	return s.TransitionStatus(ctx, OrderStatusTransitionCommand{
		Actor:              cmd.Actor,
		OrderID:            cmd.OrderID,
		TargetStatus:       domain.OrderStatusCancelled,
		CancellationReason: &reason,
	})
}

func (s *orderService) buildFarmOrder(
	ctx context.Context,
	customerID string,
	farmID string,
	storeProductIDs []string,
	quantities map[string]int,
	products map[string]StoreProduct,
	phone string,
	address string,
	now time.Time,
) (Order, error) {
	items := make([]domain.OrderItem, 0, len(storeProductIDs))
	var total int64
	for _, storeProductID := range storeProductIDs {
		product := products[storeProductID]
		quantity := quantities[storeProductID]
		lineTotal := product.SellingPrice * int64(quantity)
		items = append(items, domain.OrderItem{
			StoreProductID: storeProductID,
			ProductName:    product.Name,
			Category:       product.Category,
			Unit:           product.Unit,
			Quantity:       quantity,
			UnitPrice:      product.SellingPrice,
			LineTotal:      lineTotal,
		})
		total += lineTotal
	}

	number, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	return Order{
		ID:          s.newID(),
		Number:      number,
		CustomerID:  customerID,
		FarmID:      farmID,
		Items:       items,
		TotalAmount: total,
		FinalAmount: total,
		Status:      domain.OrderStatusPending,
		Phone:       phone,
		Address:     address,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *orderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", translateRepoError(err)
	}
	return fmt.Sprintf("FS-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderID": event.OrderID,
			"type":    event.Type,
			"error":   err.Error(),
		})
	}
}

func actorMayAccessOrder(actor Actor, order Order) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsFarmManager():
		if actor.FarmID != "" && actor.FarmID == order.FarmID {
			return nil
		}
	default:
		if actor.ID != "" && actor.ID == order.CustomerID {
			return nil
		}
	}
	return ErrAccessDenied
}

func cancelAllowedForRole(actor Actor, current domain.OrderStatus) error {
	if actor.IsAdmin() {
		return nil
	}
	window, ok := cancelWindows[actor.Role]
	if !ok {
		return ErrAccessDenied
	}
	if !containsStatus(window, current) {
		return ErrAccessDenied
	}
	return nil
}

func containsStatus(set []domain.OrderStatus, status domain.OrderStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func finalAmount(order Order) int64 {
	if order.DeliveryFee != nil {
		return order.TotalAmount + *order.DeliveryFee
	}
	return order.TotalAmount
}
