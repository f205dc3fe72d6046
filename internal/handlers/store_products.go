package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/platform/httpx"
	"github.com/farmstand/api/internal/services"
)

// StoreProductHandlers exposes the public published-listing endpoints. No
// authentication is required; unpublished listings are never served.
type StoreProductHandlers struct {
	storefront services.StorefrontService
}

// NewStoreProductHandlers constructs the public storefront handlers.
func NewStoreProductHandlers(storefront services.StorefrontService) *StoreProductHandlers {
	return &StoreProductHandlers{storefront: storefront}
}

// Routes wires the /public/store-products endpoints onto the provided router.
func (h *StoreProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listStoreProducts)
	r.Get("/{storeProductId}", h.getStoreProduct)
}

func (h *StoreProductHandlers) listStoreProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.storefront == nil {
		httpx.WriteError(ctx, w, httpx.NewError("storefront_unavailable", "storefront service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	page, err := h.storefront.ListStoreProducts(ctx, services.StoreProductFilter{
		FarmID:     strings.TrimSpace(query.Get("farm_id")),
		Category:   strings.TrimSpace(query.Get("category")),
		Pagination: parsePagination(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildStoreProductListResponse(page))
}

func (h *StoreProductHandlers) getStoreProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.storefront == nil {
		httpx.WriteError(ctx, w, httpx.NewError("storefront_unavailable", "storefront service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.storefront.GetStoreProduct(ctx, chi.URLParam(r, "storeProductId"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, storeProductResponse{StoreProduct: buildStoreProductPayload(product)})
}

func buildStoreProductListResponse(page domain.CursorPage[domain.StoreProduct]) storeProductListResponse {
	payload := storeProductListResponse{
		StoreProducts: make([]storeProductPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, product := range page.Items {
		payload.StoreProducts = append(payload.StoreProducts, buildStoreProductPayload(product))
	}
	return payload
}

func buildStoreProductPayload(product services.StoreProduct) storeProductPayload {
	return storeProductPayload{
		ID:             product.ID,
		FarmID:         product.FarmID,
		Name:           product.Name,
		Category:       product.Category,
		Unit:           product.Unit,
		SellingPrice:   product.SellingPrice,
		AvailableStock: product.AvailableStock,
		CreatedAt:      formatTime(product.CreatedAt),
		UpdatedAt:      formatTime(product.UpdatedAt),
	}
}

type storeProductResponse struct {
	StoreProduct storeProductPayload `json:"store_product"`
}

type storeProductListResponse struct {
	StoreProducts []storeProductPayload `json:"store_products"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type storeProductPayload struct {
	ID             string `json:"id"`
	FarmID         string `json:"farm_id"`
	Name           string `json:"name"`
	Category       string `json:"category,omitempty"`
	Unit           string `json:"unit,omitempty"`
	SellingPrice   int64  `json:"selling_price"`
	AvailableStock int    `json:"available_stock"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
