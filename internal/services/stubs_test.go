package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/repositories"
)

// notFoundError satisfies repositories.RepositoryError for stub lookups.
type notFoundError struct{ msg string }

func (e *notFoundError) Error() string       { return e.msg }
func (e *notFoundError) IsNotFound() bool    { return true }
func (e *notFoundError) IsConflict() bool    { return false }
func (e *notFoundError) IsUnavailable() bool { return false }

func notFound(format string, args ...any) error {
	return &notFoundError{msg: fmt.Sprintf(format, args...)}
}

// stubCartRepository keeps cart lines in memory keyed by customer and product.
type stubCartRepository struct {
	mu    sync.Mutex
	lines map[string]map[string]domain.CartLine

	replaceAllErr error
	clearCalls    int
}

func newStubCartRepository() *stubCartRepository {
	return &stubCartRepository{lines: make(map[string]map[string]domain.CartLine)}
}

func (s *stubCartRepository) ListLines(_ context.Context, customerID string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CartLine
	for _, line := range s.lines[customerID] {
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (s *stubCartRepository) GetLine(_ context.Context, customerID, storeProductID string) (domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[customerID][storeProductID]
	if !ok {
		return domain.CartLine{}, notFound("cart line %s not found", storeProductID)
	}
	return line, nil
}

func (s *stubCartRepository) PutLine(_ context.Context, line domain.CartLine) (domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lines[line.CustomerID] == nil {
		s.lines[line.CustomerID] = make(map[string]domain.CartLine)
	}
	line.ID = line.StoreProductID
	s.lines[line.CustomerID][line.StoreProductID] = line
	return line, nil
}

func (s *stubCartRepository) DeleteLine(_ context.Context, customerID, storeProductID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines[customerID], storeProductID)
	return nil
}

func (s *stubCartRepository) ReplaceAll(_ context.Context, customerID string, lines []domain.CartLine) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceAllErr != nil {
		return nil, s.replaceAllErr
	}
	next := make(map[string]domain.CartLine, len(lines))
	out := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		line.ID = line.StoreProductID
		next[line.StoreProductID] = line
		out = append(out, line)
	}
	s.lines[customerID] = next
	return out, nil
}

func (s *stubCartRepository) Clear(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	delete(s.lines, customerID)
	return nil
}

func (s *stubCartRepository) lineCount(customerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines[customerID])
}

// stubStoreProductRepository serves store products from a fixed map.
type stubStoreProductRepository struct {
	mu       sync.Mutex
	products map[string]domain.StoreProduct
}

func newStubStoreProductRepository(products ...domain.StoreProduct) *stubStoreProductRepository {
	byID := make(map[string]domain.StoreProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &stubStoreProductRepository{products: byID}
}

func (s *stubStoreProductRepository) FindByID(_ context.Context, id string) (domain.StoreProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok {
		return domain.StoreProduct{}, notFound("store product %s not found", id)
	}
	return product, nil
}

func (s *stubStoreProductRepository) FindMany(_ context.Context, ids []string) (map[string]domain.StoreProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[string]domain.StoreProduct, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			found[id] = product
		}
	}
	return found, nil
}

func (s *stubStoreProductRepository) ListPublished(_ context.Context, filter repositories.StoreProductListFilter) (domain.CursorPage[domain.StoreProduct], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.StoreProduct
	for _, p := range s.products {
		if !p.IsPublished {
			continue
		}
		if filter.FarmID != "" && p.FarmID != filter.FarmID {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.CursorPage[domain.StoreProduct]{Items: items}, nil
}

func (s *stubStoreProductRepository) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].AvailableStock
}

// stubOrderRepository mimics the stock-coupled order writes of the Firestore
// implementation against the shared store product stub.
type stubOrderRepository struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	catalog  *stubStoreProductRepository
	failFarm string
}

func newStubOrderRepository(catalog *stubStoreProductRepository) *stubOrderRepository {
	return &stubOrderRepository{
		orders:  make(map[string]domain.Order),
		catalog: catalog,
	}
}

func (s *stubOrderRepository) CreateWithStockDecrement(_ context.Context, order domain.Order, adjustments []repositories.StockAdjustment) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFarm != "" && order.FarmID == s.failFarm {
		return domain.Order{}, repositories.NewStockError(repositories.StockErrorUnknown, order.FarmID, "simulated transaction failure", nil)
	}

	s.catalog.mu.Lock()
	defer s.catalog.mu.Unlock()
	for _, adj := range adjustments {
		product, ok := s.catalog.products[adj.StoreProductID]
		if !ok {
			return domain.Order{}, repositories.NewStockError(repositories.StockErrorNotFound, adj.StoreProductID, "missing", nil)
		}
		if product.AvailableStock < adj.Quantity {
			stockErr := repositories.NewStockError(repositories.StockErrorInsufficient, adj.StoreProductID, "short", nil)
			stockErr.Available = product.AvailableStock
			stockErr.Requested = adj.Quantity
			return domain.Order{}, stockErr
		}
	}
	for _, adj := range adjustments {
		product := s.catalog.products[adj.StoreProductID]
		product.AvailableStock -= adj.Quantity
		s.catalog.products[adj.StoreProductID] = product
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("order %s not found", orderID)
	}
	return order, nil
}

func (s *stubOrderRepository) Update(_ context.Context, order domain.Order, expected domain.OrderStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkStoredStatusLocked(order.ID, expected); err != nil {
		return domain.Order{}, err
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepository) UpdateWithStockRestore(_ context.Context, order domain.Order, expected domain.OrderStatus, adjustments []repositories.StockAdjustment) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkStoredStatusLocked(order.ID, expected); err != nil {
		return domain.Order{}, err
	}
	s.catalog.mu.Lock()
	defer s.catalog.mu.Unlock()
	for _, adj := range adjustments {
		product, ok := s.catalog.products[adj.StoreProductID]
		if !ok {
			continue
		}
		product.AvailableStock += adj.Quantity
		s.catalog.products[adj.StoreProductID] = product
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepository) checkStoredStatusLocked(orderID string, expected domain.OrderStatus) error {
	stored, ok := s.orders[orderID]
	if !ok {
		return repositories.NewStockError(repositories.StockErrorNotFound, orderID, "order "+orderID+" not found", nil)
	}
	if expected != "" && stored.Status != expected {
		return repositories.NewStockError(repositories.StockErrorStaleStatus, orderID,
			fmt.Sprintf("order %s is %s, expected %s", orderID, stored.Status, expected), nil)
	}
	return nil
}

func (s *stubOrderRepository) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Order
	for _, order := range s.orders {
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		if filter.FarmID != "" && order.FarmID != filter.FarmID {
			continue
		}
		if len(filter.Status) > 0 {
			matched := false
			for _, status := range filter.Status {
				if order.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		items = append(items, order)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

// stubProductRepository serves farm products and batch totals.
type stubProductRepository struct {
	mu       sync.Mutex
	products map[string]domain.Product
	totals   map[string]domain.BatchCostTotals
}

func newStubProductRepository(products ...domain.Product) *stubProductRepository {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &stubProductRepository{
		products: byID,
		totals:   make(map[string]domain.BatchCostTotals),
	}
}

func (s *stubProductRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, notFound("product %s not found", productID)
	}
	return product, nil
}

func (s *stubProductRepository) BatchTotals(_ context.Context, farmID, batchID string) (domain.BatchCostTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[farmID+"/"+batchID], nil
}

// stubSaleRepository mimics the sale transactions against the product stub.
type stubSaleRepository struct {
	mu       sync.Mutex
	sales    map[string]domain.Sale
	products *stubProductRepository
}

func newStubSaleRepository(products *stubProductRepository) *stubSaleRepository {
	return &stubSaleRepository{
		sales:    make(map[string]domain.Sale),
		products: products,
	}
}

func (s *stubSaleRepository) InsertWithStockDecrement(_ context.Context, sale domain.Sale) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products.mu.Lock()
	defer s.products.mu.Unlock()
	product, ok := s.products.products[sale.ProductID]
	if !ok {
		return domain.Sale{}, repositories.NewStockError(repositories.StockErrorNotFound, sale.ProductID, "missing", nil)
	}
	if product.Quantity < sale.QuantitySold {
		stockErr := repositories.NewStockError(repositories.StockErrorInsufficient, sale.ProductID, "short", nil)
		stockErr.Available = product.Quantity
		stockErr.Requested = sale.QuantitySold
		return domain.Sale{}, stockErr
	}
	product.Quantity -= sale.QuantitySold
	if product.Quantity == 0 {
		product.Status = domain.ProductStatusSold
	}
	s.products.products[sale.ProductID] = product
	s.sales[sale.ID] = sale
	return sale, nil
}

func (s *stubSaleRepository) FindByID(_ context.Context, saleID string) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[saleID]
	if !ok {
		return domain.Sale{}, notFound("sale %s not found", saleID)
	}
	return sale, nil
}

func (s *stubSaleRepository) DeleteWithStockRestore(_ context.Context, saleID string) (repositories.SaleReversalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[saleID]
	if !ok {
		return repositories.SaleReversalResult{}, repositories.NewStockError(repositories.StockErrorNotFound, saleID, "missing", nil)
	}
	delete(s.sales, saleID)

	s.products.mu.Lock()
	defer s.products.mu.Unlock()
	product, ok := s.products.products[sale.ProductID]
	if !ok {
		return repositories.SaleReversalResult{Sale: sale, ProductRestored: false}, nil
	}
	product.Quantity += sale.QuantitySold
	product.Status = domain.ProductStatusUnsold
	s.products.products[sale.ProductID] = product
	return repositories.SaleReversalResult{Sale: sale, ProductRestored: true}, nil
}

func (s *stubSaleRepository) List(_ context.Context, filter repositories.SaleListFilter) (domain.CursorPage[domain.Sale], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Sale
	for _, sale := range s.sales {
		if filter.FarmID != "" && sale.FarmID != filter.FarmID {
			continue
		}
		if filter.ProductID != "" && sale.ProductID != filter.ProductID {
			continue
		}
		items = append(items, sale)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.CursorPage[domain.Sale]{Items: items}, nil
}

// stubCounterRepository returns sequential values.
type stubCounterRepository struct {
	mu     sync.Mutex
	value  int64
	nextFn func(context.Context, string, int64) (int64, error)
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if step <= 0 {
		step = 1
	}
	s.value += step
	return s.value, nil
}

func (s *stubCounterRepository) Configure(context.Context, string, repositories.CounterConfig) error {
	return nil
}

// recordingOrderPublisher captures published order events.
type recordingOrderPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *recordingOrderPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// recordingSalePublisher captures published sale events.
type recordingSalePublisher struct {
	mu     sync.Mutex
	events []SaleEvent
}

func (p *recordingSalePublisher) PublishSaleEvent(_ context.Context, event SaleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

var testClock = func() time.Time {
	return time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)
}
