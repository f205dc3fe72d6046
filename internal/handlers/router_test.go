package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/services"
)

func TestRouterServesProbes(t *testing.T) {
	router := NewRouter()

	rr := doRequest(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rr.Code)
	}

	rr = doRequest(router, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rr.Code)
	}
}

func TestRouterUnknownRouteEnvelope(t *testing.T) {
	router := NewRouter()

	rr := doRequest(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if payload["error"] != "route_not_found" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
}

func TestRouterUnconfiguredGroupIsNotImplemented(t *testing.T) {
	router := NewRouter()

	rr := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}

func TestRouterMountsRouteGroups(t *testing.T) {
	storefront := &stubStorefrontService{
		listFunc: func(ctx context.Context, filter services.StoreProductFilter) (domain.CursorPage[services.StoreProduct], error) {
			return domain.CursorPage[services.StoreProduct]{}, nil
		},
	}
	carts := &stubCartService{
		getCartFunc: func(ctx context.Context, customerID string) ([]services.CartLine, error) {
			return nil, nil
		},
	}

	router := NewRouter(
		WithPublicRoutes(NewStoreProductHandlers(storefront).Routes),
		WithCartRoutes(func(r chi.Router) {
			NewCartHandlers(nil, carts).Routes(r)
		}),
	)

	rr := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/v1/public/store-products", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("storefront group: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), customerIdentity("cust-1"))
	rr = doRequest(router, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("cart group: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterWriteMiddlewaresApplyToMutatingGroups(t *testing.T) {
	var seen []string
	marker := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	orders := &stubOrderService{
		listOrdersFunc: func(ctx context.Context, actor services.Actor, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			return domain.CursorPage[services.Order]{}, nil
		},
	}

	router := NewRouter(
		WithOrderRoutes(NewOrderHandlers(nil, orders).Routes),
		WithWriteMiddlewares(marker),
	)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), customerIdentity("cust-1"))
	rr := doRequest(router, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(seen) != 1 {
		t.Fatalf("expected middleware to run once, saw %v", seen)
	}
}
