package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/platform/auth"
	"github.com/farmstand/api/internal/services"
)

type stubCartService struct {
	getCartFunc         func(ctx context.Context, customerID string) ([]services.CartLine, error)
	addOrUpdateLineFunc func(ctx context.Context, cmd services.AddCartLineCommand) (services.CartLine, error)
	syncCartFunc        func(ctx context.Context, cmd services.SyncCartCommand) ([]services.CartLine, error)
	removeLineFunc      func(ctx context.Context, customerID, storeProductID string) error
	clearFunc           func(ctx context.Context, customerID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, customerID string) ([]services.CartLine, error) {
	return s.getCartFunc(ctx, customerID)
}

func (s *stubCartService) AddOrUpdateLine(ctx context.Context, cmd services.AddCartLineCommand) (services.CartLine, error) {
	return s.addOrUpdateLineFunc(ctx, cmd)
}

func (s *stubCartService) SyncCart(ctx context.Context, cmd services.SyncCartCommand) ([]services.CartLine, error) {
	return s.syncCartFunc(ctx, cmd)
}

func (s *stubCartService) RemoveLine(ctx context.Context, customerID, storeProductID string) error {
	return s.removeLineFunc(ctx, customerID, storeProductID)
}

func (s *stubCartService) Clear(ctx context.Context, customerID string) error {
	return s.clearFunc(ctx, customerID)
}

type stubOrderService struct {
	placeOrderFunc         func(ctx context.Context, cmd services.PlaceOrderCommand) (services.PlaceOrderResult, error)
	placeOrderFromCartFunc func(ctx context.Context, cmd services.PlaceOrderFromCartCommand) (services.PlaceOrderResult, error)
	getOrderFunc           func(ctx context.Context, actor services.Actor, orderID string) (services.Order, error)
	listOrdersFunc         func(ctx context.Context, actor services.Actor, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	transitionFunc         func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error)
	setDeliveryFeeFunc     func(ctx context.Context, cmd services.SetDeliveryFeeCommand) (services.Order, error)
	cancelFunc             func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.PlaceOrderResult, error) {
	return s.placeOrderFunc(ctx, cmd)
}

func (s *stubOrderService) PlaceOrderFromCart(ctx context.Context, cmd services.PlaceOrderFromCartCommand) (services.PlaceOrderResult, error) {
	return s.placeOrderFromCartFunc(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, actor services.Actor, orderID string) (services.Order, error) {
	return s.getOrderFunc(ctx, actor, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, actor services.Actor, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	return s.listOrdersFunc(ctx, actor, filter)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
	return s.transitionFunc(ctx, cmd)
}

func (s *stubOrderService) SetDeliveryFee(ctx context.Context, cmd services.SetDeliveryFeeCommand) (services.Order, error) {
	return s.setDeliveryFeeFunc(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	return s.cancelFunc(ctx, cmd)
}

type stubSaleService struct {
	recordSaleFunc  func(ctx context.Context, cmd services.RecordSaleCommand) (services.Sale, error)
	reverseSaleFunc func(ctx context.Context, cmd services.ReverseSaleCommand) (services.SaleReversal, error)
	getSaleFunc     func(ctx context.Context, actor services.Actor, saleID string) (services.Sale, error)
	listSalesFunc   func(ctx context.Context, actor services.Actor, filter services.SaleListFilter) (domain.CursorPage[services.Sale], error)
}

func (s *stubSaleService) RecordSale(ctx context.Context, cmd services.RecordSaleCommand) (services.Sale, error) {
	return s.recordSaleFunc(ctx, cmd)
}

func (s *stubSaleService) ReverseSale(ctx context.Context, cmd services.ReverseSaleCommand) (services.SaleReversal, error) {
	return s.reverseSaleFunc(ctx, cmd)
}

func (s *stubSaleService) GetSale(ctx context.Context, actor services.Actor, saleID string) (services.Sale, error) {
	return s.getSaleFunc(ctx, actor, saleID)
}

func (s *stubSaleService) ListSales(ctx context.Context, actor services.Actor, filter services.SaleListFilter) (domain.CursorPage[services.Sale], error) {
	return s.listSalesFunc(ctx, actor, filter)
}

type stubStorefrontService struct {
	getFunc  func(ctx context.Context, storeProductID string) (services.StoreProduct, error)
	listFunc func(ctx context.Context, filter services.StoreProductFilter) (domain.CursorPage[services.StoreProduct], error)
}

func (s *stubStorefrontService) GetStoreProduct(ctx context.Context, storeProductID string) (services.StoreProduct, error) {
	return s.getFunc(ctx, storeProductID)
}

func (s *stubStorefrontService) ListStoreProducts(ctx context.Context, filter services.StoreProductFilter) (domain.CursorPage[services.StoreProduct], error) {
	return s.listFunc(ctx, filter)
}

type stubSystemService struct {
	healthFunc  func(ctx context.Context) (services.SystemHealthReport, error)
	counterFunc func(ctx context.Context, cmd services.CounterCommand) (int64, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	return s.healthFunc(ctx)
}

func (s *stubSystemService) NextCounterValue(ctx context.Context, cmd services.CounterCommand) (int64, error) {
	if s.counterFunc == nil {
		return 0, nil
	}
	return s.counterFunc(ctx, cmd)
}

func withIdentity(req *http.Request, identity *auth.Identity) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func customerIdentity(id string) *auth.Identity {
	return &auth.Identity{Subject: id, Role: auth.RoleCustomer}
}

func managerIdentity(id, farmID string) *auth.Identity {
	return &auth.Identity{Subject: id, Role: auth.RoleFarmManager, FarmID: farmID}
}

func doRequest(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
