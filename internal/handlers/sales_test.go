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
	"github.com/shopspring/decimal"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/services"
)

func newSaleRouter(service services.SaleService) chi.Router {
	handler := NewSaleHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin/sales", handler.Routes)
	return router
}

func TestSaleHandlersRecordSale(t *testing.T) {
	service := &stubSaleService{
		recordSaleFunc: func(ctx context.Context, cmd services.RecordSaleCommand) (services.Sale, error) {
			if cmd.ProductID != "prod-1" || cmd.QuantitySold != 3 || cmd.PricePerUnit != 150 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			if cmd.SaleDate == nil || !cmd.SaleDate.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
				t.Fatalf("expected parsed sale date, got %+v", cmd.SaleDate)
			}
			return services.Sale{
				ID:           "sale_1",
				ProductID:    cmd.ProductID,
				FarmID:       "farm-a",
				QuantitySold: cmd.QuantitySold,
				PricePerUnit: cmd.PricePerUnit,
				TotalAmount:  450,
				UnitCost:     decimal.NewFromInt(110),
				Profit:       decimal.NewFromInt(120),
			}, nil
		},
	}
	router := newSaleRouter(service)

	body := strings.NewReader(`{"product_id":"prod-1","quantity_sold":3,"price_per_unit":150,"sale_date":"2025-05-01T00:00:00Z"}`)
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/admin/sales", body), managerIdentity("mgr-1", "farm-a"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload saleResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Sale.UnitCost != "110" || payload.Sale.Profit != "120" {
		t.Fatalf("expected decimal strings, got %+v", payload.Sale)
	}
}

func TestSaleHandlersRecordSaleRejectsBadDate(t *testing.T) {
	router := newSaleRouter(&stubSaleService{})

	body := strings.NewReader(`{"product_id":"prod-1","quantity_sold":1,"price_per_unit":100,"sale_date":"yesterday"}`)
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/admin/sales", body), managerIdentity("mgr-1", "farm-a"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSaleHandlersRecordSaleInsufficientQuantity(t *testing.T) {
	service := &stubSaleService{
		recordSaleFunc: func(ctx context.Context, cmd services.RecordSaleCommand) (services.Sale, error) {
			return services.Sale{}, &services.InsufficientStockError{ItemID: "prod-1", Available: 2, Requested: 9}
		},
	}
	router := newSaleRouter(service)

	body := strings.NewReader(`{"product_id":"prod-1","quantity_sold":9,"price_per_unit":100}`)
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/admin/sales", body), managerIdentity("mgr-1", "farm-a"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if payload["error"] != "insufficient_stock" || payload["requested"] != float64(9) {
		t.Fatalf("unexpected error body %v", payload)
	}
}

func TestSaleHandlersReverseSale(t *testing.T) {
	service := &stubSaleService{
		reverseSaleFunc: func(ctx context.Context, cmd services.ReverseSaleCommand) (services.SaleReversal, error) {
			if cmd.SaleID != "sale_1" {
				t.Fatalf("unexpected sale id %q", cmd.SaleID)
			}
			return services.SaleReversal{
				Sale:            services.Sale{ID: cmd.SaleID, ProductID: "prod-1"},
				ProductRestored: false,
			}, nil
		},
	}
	router := newSaleRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodDelete, "/admin/sales/sale_1", nil), managerIdentity("mgr-1", "farm-a"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload saleReversalResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.ProductRestored {
		t.Fatalf("expected product_restored=false reported")
	}
}

func TestSaleHandlersListSales(t *testing.T) {
	service := &stubSaleService{
		listSalesFunc: func(ctx context.Context, actor services.Actor, filter services.SaleListFilter) (domain.CursorPage[services.Sale], error) {
			if filter.ProductID != "prod-1" {
				t.Fatalf("unexpected product filter %q", filter.ProductID)
			}
			if filter.DateRange.From == nil {
				t.Fatalf("expected parsed from date")
			}
			return domain.CursorPage[services.Sale]{Items: []services.Sale{{ID: "sale_1"}}}, nil
		},
	}
	router := newSaleRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin/sales?product_id=prod-1&from=2025-05-01T00:00:00Z", nil), managerIdentity("mgr-1", "farm-a"))
	rr := doRequest(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload saleListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(payload.Sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(payload.Sales))
	}
}
