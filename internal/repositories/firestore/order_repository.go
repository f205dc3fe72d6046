package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/farmstand/api/internal/domain"
	pfirestore "github.com/farmstand/api/internal/platform/firestore"
	"github.com/farmstand/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders in Firestore. Stock-coupled writes mutate
// the order and the store product stock counters in a single transaction so
// available stock never goes negative.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	products *pfirestore.BaseRepository[storeProductDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		products: pfirestore.NewBaseRepository[storeProductDocument](provider, storeProductsCollection, nil, nil),
		provider: provider,
	}, nil
}

// CreateWithStockDecrement writes the order and decrements available stock for
// every adjustment. The transaction fails as a whole when any product is
// missing, unpublished, or short on stock.
func (r *OrderRepository) CreateWithStockDecrement(ctx context.Context, order domain.Order, adjustments []repositories.StockAdjustment) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	if len(order.Items) == 0 {
		return domain.Order{}, errors.New("order repository: order requires at least one item")
	}

	var saved domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}

		type pendingUpdate struct {
			ref *firestore.DocumentRef
			doc storeProductDocument
		}
		updates := make([]pendingUpdate, 0, len(adjustments))
		now := order.CreatedAt.UTC()
		if now.IsZero() {
			now = time.Now().UTC()
		}

		for _, adj := range adjustments {
			productID := strings.TrimSpace(adj.StoreProductID)
			if productID == "" {
				return repositories.NewStockError(repositories.StockErrorNotFound, productID, "store product id is required", nil)
			}
			if adj.Quantity <= 0 {
				return repositories.NewStockError(repositories.StockErrorUnknown, productID, fmt.Sprintf("quantity for %s must be positive", productID), nil)
			}

			productRef, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewStockError(repositories.StockErrorNotFound, productID, fmt.Sprintf("store product %s not found", productID), err)
				}
				return err
			}
			var doc storeProductDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode store product %s: %w", productID, err)
			}
			if !doc.IsPublished {
				return repositories.NewStockError(repositories.StockErrorUnpublished, productID, fmt.Sprintf("store product %s is not published", productID), nil)
			}
			if doc.AvailableStock < adj.Quantity {
				stockErr := repositories.NewStockError(repositories.StockErrorInsufficient, productID, fmt.Sprintf("insufficient stock for %s", productID), nil)
				stockErr.Available = doc.AvailableStock
				stockErr.Requested = adj.Quantity
				return stockErr
			}
			doc.AvailableStock -= adj.Quantity
			doc.UpdatedAt = now
			updates = append(updates, pendingUpdate{ref: productRef, doc: doc})
		}

		for _, update := range updates {
			if err := tx.Set(update.ref, update.doc); err != nil {
				return err
			}
		}

		orderDoc := newOrderDocument(order)
		if err := tx.Create(orderRef, orderDoc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewStockError(repositories.StockErrorUnknown, orderID, fmt.Sprintf("order %s already exists", orderID), err)
			}
			return err
		}
		saved = orderDoc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapStockError("orders.create", err)
	}
	return saved, nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Update overwrites the order document without touching stock. The stored
// status is re-read inside the transaction and must still equal expected,
// otherwise the write fails as stale.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expected domain.OrderStatus) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	var saved domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		if err := r.checkStoredStatus(tx, orderRef, orderID, expected); err != nil {
			return err
		}

		orderDoc := newOrderDocument(order)
		if err := tx.Set(orderRef, orderDoc); err != nil {
			return err
		}
		saved = orderDoc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapStockError("orders.update", err)
	}
	return saved, nil
}

// UpdateWithStockRestore writes the order and increments available stock for
// every adjustment. The stored status must still equal expected, so two
// concurrent cancellations cannot both credit stock back. Adjustments whose
// store product no longer exists are skipped rather than failing the
// transaction.
func (r *OrderRepository) UpdateWithStockRestore(ctx context.Context, order domain.Order, expected domain.OrderStatus, adjustments []repositories.StockAdjustment) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	var saved domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		if err := r.checkStoredStatus(tx, orderRef, orderID, expected); err != nil {
			return err
		}

		type pendingUpdate struct {
			ref *firestore.DocumentRef
			doc storeProductDocument
		}
		updates := make([]pendingUpdate, 0, len(adjustments))
		now := order.UpdatedAt.UTC()
		if now.IsZero() {
			now = time.Now().UTC()
		}

		for _, adj := range adjustments {
			productID := strings.TrimSpace(adj.StoreProductID)
			if productID == "" || adj.Quantity <= 0 {
				continue
			}
			productRef, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					continue
				}
				return err
			}
			var doc storeProductDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode store product %s: %w", productID, err)
			}
			doc.AvailableStock += adj.Quantity
			doc.UpdatedAt = now
			updates = append(updates, pendingUpdate{ref: productRef, doc: doc})
		}

		for _, update := range updates {
			if err := tx.Set(update.ref, update.doc); err != nil {
				return err
			}
		}

		orderDoc := newOrderDocument(order)
		if err := tx.Set(orderRef, orderDoc); err != nil {
			return err
		}
		saved = orderDoc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapStockError("orders.updateWithRestore", err)
	}
	return saved, nil
}

// checkStoredStatus re-reads the order inside tx and verifies its persisted
// status still matches what the caller decided against. Transactions require
// all reads before any write, so this must run ahead of the product loop.
func (r *OrderRepository) checkStoredStatus(tx *firestore.Transaction, orderRef *firestore.DocumentRef, orderID string, expected domain.OrderStatus) error {
	snap, err := tx.Get(orderRef)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return repositories.NewStockError(repositories.StockErrorNotFound, orderID, fmt.Sprintf("order %s not found", orderID), err)
		}
		return err
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return fmt.Errorf("decode order %s: %w", orderID, err)
	}
	if expected != "" && doc.Status != string(expected) {
		return repositories.NewStockError(repositories.StockErrorStaleStatus, orderID,
			fmt.Sprintf("order %s is %s, expected %s", orderID, doc.Status, expected), nil)
	}
	return nil
}

// List returns orders ordered by creation time, newest first, filtered by
// customer, farm, status set, and creation date range.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	query := client.Collection(ordersCollection).Query
	if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" {
		query = query.Where("customerId", "==", customerID)
	}
	if farmID := strings.TrimSpace(filter.FarmID); farmID != "" {
		query = query.Where("farmId", "==", farmID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status", "in", statuses)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
	}
	query = query.OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := decodeListCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		query = query.StartAfter(cursor.CreatedAt, cursor.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := encodeListCursor(listCursor{ID: last.ID, CreatedAt: last.CreatedAt})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: nextToken,
	}, nil
}

type orderDocument struct {
	Number             string              `firestore:"number"`
	CustomerID         string              `firestore:"customerId"`
	FarmID             string              `firestore:"farmId"`
	Items              []orderItemDocument `firestore:"items"`
	TotalAmount        int64               `firestore:"totalAmount"`
	DeliveryFee        *int64              `firestore:"deliveryFee,omitempty"`
	FinalAmount        int64               `firestore:"finalAmount"`
	Status             string              `firestore:"status"`
	CancellationReason *string             `firestore:"cancellationReason,omitempty"`
	CourierContact     *string             `firestore:"courierContact,omitempty"`
	CourierRefID       *string             `firestore:"courierRefId,omitempty"`
	PaymentInfo        *string             `firestore:"paymentInfo,omitempty"`
	Phone              string              `firestore:"phone,omitempty"`
	Address            string              `firestore:"address,omitempty"`
	ConfirmedAt        *time.Time          `firestore:"confirmedAt,omitempty"`
	ShippedAt          *time.Time          `firestore:"shippedAt,omitempty"`
	DeliveredAt        *time.Time          `firestore:"deliveredAt,omitempty"`
	CancelledAt        *time.Time          `firestore:"cancelledAt,omitempty"`
	CreatedAt          time.Time           `firestore:"createdAt"`
	UpdatedAt          time.Time           `firestore:"updatedAt"`
}

type orderItemDocument struct {
	StoreProductID string `firestore:"storeProductId"`
	ProductName    string `firestore:"productName"`
	Category       string `firestore:"category,omitempty"`
	Unit           string `firestore:"unit,omitempty"`
	Quantity       int    `firestore:"quantity"`
	UnitPrice      int64  `firestore:"unitPrice"`
	LineTotal      int64  `firestore:"lineTotal"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemDocument{
			StoreProductID: strings.TrimSpace(item.StoreProductID),
			ProductName:    strings.TrimSpace(item.ProductName),
			Category:       strings.TrimSpace(item.Category),
			Unit:           strings.TrimSpace(item.Unit),
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			LineTotal:      item.LineTotal,
		}
	}
	return orderDocument{
		Number:             strings.TrimSpace(order.Number),
		CustomerID:         strings.TrimSpace(order.CustomerID),
		FarmID:             strings.TrimSpace(order.FarmID),
		Items:              items,
		TotalAmount:        order.TotalAmount,
		DeliveryFee:        order.DeliveryFee,
		FinalAmount:        order.FinalAmount,
		Status:             string(order.Status),
		CancellationReason: order.CancellationReason,
		CourierContact:     order.CourierContact,
		CourierRefID:       order.CourierRefID,
		PaymentInfo:        order.PaymentInfo,
		Phone:              strings.TrimSpace(order.Phone),
		Address:            strings.TrimSpace(order.Address),
		ConfirmedAt:        order.ConfirmedAt,
		ShippedAt:          order.ShippedAt,
		DeliveredAt:        order.DeliveredAt,
		CancelledAt:        order.CancelledAt,
		CreatedAt:          order.CreatedAt.UTC(),
		UpdatedAt:          order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderItem{
			StoreProductID: item.StoreProductID,
			ProductName:    item.ProductName,
			Category:       item.Category,
			Unit:           item.Unit,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			LineTotal:      item.LineTotal,
		}
	}
	return domain.Order{
		ID:                 id,
		Number:             d.Number,
		CustomerID:         d.CustomerID,
		FarmID:             d.FarmID,
		Items:              items,
		TotalAmount:        d.TotalAmount,
		DeliveryFee:        d.DeliveryFee,
		FinalAmount:        d.FinalAmount,
		Status:             domain.OrderStatus(d.Status),
		CancellationReason: d.CancellationReason,
		CourierContact:     d.CourierContact,
		CourierRefID:       d.CourierRefID,
		PaymentInfo:        d.PaymentInfo,
		Phone:              d.Phone,
		Address:            d.Address,
		ConfirmedAt:        d.ConfirmedAt,
		ShippedAt:          d.ShippedAt,
		DeliveredAt:        d.DeliveredAt,
		CancelledAt:        d.CancelledAt,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func wrapStockError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		if stockErr.Op == "" {
			stockErr.Op = op
		}
		return stockErr
	}
	return pfirestore.WrapError(op, err)
}
