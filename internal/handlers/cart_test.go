package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmstand/api/internal/services"
)

func newCartRouter(service services.CartService) chi.Router {
	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)
	return router
}

func TestCartHandlersGetCart(t *testing.T) {
	added := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	service := &stubCartService{
		getCartFunc: func(ctx context.Context, customerID string) ([]services.CartLine, error) {
			if customerID != "cust-7" {
				t.Fatalf("unexpected customer id %q", customerID)
			}
			return []services.CartLine{
				{StoreProductID: "sp-1", Quantity: 2, AddedAt: added},
				{StoreProductID: "sp-2", Quantity: 1, AddedAt: added.Add(time.Minute)},
			}, nil
		},
	}
	router := newCartRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/cart", nil), customerIdentity("cust-7"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.ItemsCount != 2 || len(payload.Lines) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Lines[0].AddedAt != "2025-05-01T10:00:00Z" {
		t.Fatalf("unexpected added_at %q", payload.Lines[0].AddedAt)
	}
}

func TestCartHandlersGetCartRequiresIdentity(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	rr := doRequest(router, httptest.NewRequest(http.MethodGet, "/cart", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	service := &stubCartService{
		addOrUpdateLineFunc: func(ctx context.Context, cmd services.AddCartLineCommand) (services.CartLine, error) {
			if cmd.CustomerID != "cust-7" || cmd.StoreProductID != "sp-1" || cmd.Quantity != 3 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.CartLine{StoreProductID: cmd.StoreProductID, Quantity: cmd.Quantity}, nil
		},
	}
	router := newCartRouter(service)

	body := strings.NewReader(`{"store_product_id":"sp-1","quantity":3}`)
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/cart/items", body), customerIdentity("cust-7"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCartHandlersAddItemUnavailable(t *testing.T) {
	service := &stubCartService{
		addOrUpdateLineFunc: func(ctx context.Context, cmd services.AddCartLineCommand) (services.CartLine, error) {
			return services.CartLine{}, services.ErrUnavailable
		},
	}
	router := newCartRouter(service)

	body := strings.NewReader(`{"store_product_id":"sp-1","quantity":3}`)
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/cart/items", body), customerIdentity("cust-7"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if payload["error"] != "item_unavailable" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
}

func TestCartHandlersSyncInsufficientStockDetail(t *testing.T) {
	service := &stubCartService{
		syncCartFunc: func(ctx context.Context, cmd services.SyncCartCommand) ([]services.CartLine, error) {
			return nil, &services.InsufficientStockError{ItemID: "sp-2", Available: 1, Requested: 5}
		},
	}
	router := newCartRouter(service)

	body := strings.NewReader(`{"items":[{"store_product_id":"sp-2","quantity":5}]}`)
	req := withIdentity(httptest.NewRequest(http.MethodPut, "/cart", body), customerIdentity("cust-7"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if payload["error"] != "insufficient_stock" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
	if payload["item_id"] != "sp-2" || payload["available"] != float64(1) || payload["requested"] != float64(5) {
		t.Fatalf("missing stock detail in %v", payload)
	}
}

func TestCartHandlersRemoveItem(t *testing.T) {
	var removed string
	service := &stubCartService{
		removeLineFunc: func(ctx context.Context, customerID, storeProductID string) error {
			removed = customerID + "/" + storeProductID
			return nil
		},
	}
	router := newCartRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodDelete, "/cart/items/sp-9", nil), customerIdentity("cust-7"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if removed != "cust-7/sp-9" {
		t.Fatalf("unexpected removal %q", removed)
	}
}

func TestCartHandlersClear(t *testing.T) {
	var cleared string
	service := &stubCartService{
		clearFunc: func(ctx context.Context, customerID string) error {
			cleared = customerID
			return nil
		},
	}
	router := newCartRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodDelete, "/cart", nil), customerIdentity("cust-7"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if cleared != "cust-7" {
		t.Fatalf("unexpected customer %q", cleared)
	}
}
