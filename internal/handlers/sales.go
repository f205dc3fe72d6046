package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/platform/auth"
	"github.com/farmstand/api/internal/platform/httpx"
	"github.com/farmstand/api/internal/services"
)

// SaleHandlers exposes the direct-sale recording and reversal endpoints.
type SaleHandlers struct {
	authn *auth.Authenticator
	sales services.SaleService
}

const maxSaleBodySize = 16 * 1024

// NewSaleHandlers constructs handlers for farm-manager and admin sale management.
func NewSaleHandlers(authn *auth.Authenticator, sales services.SaleService) *SaleHandlers {
	return &SaleHandlers{
		authn: authn,
		sales: sales,
	}
}

// Routes wires the /admin/sales endpoints onto the provided router.
func (h *SaleHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireRoles(auth.RoleFarmManager, auth.RoleAdmin))
	}
	r.Post("/", h.recordSale)
	r.Get("/", h.listSales)
	r.Get("/{saleId}", h.getSale)
	r.Delete("/{saleId}", h.reverseSale)
}

func (h *SaleHandlers) recordSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sales == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sale_service_unavailable", "sale service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req recordSaleRequest
	if err := decodeJSONBody(r, maxSaleBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.RecordSaleCommand{
		Actor:        actorFromIdentity(identity),
		ProductID:    strings.TrimSpace(req.ProductID),
		QuantitySold: req.QuantitySold,
		PricePerUnit: req.PricePerUnit,
	}
	if raw := strings.TrimSpace(req.SaleDate); raw != "" {
		saleDate, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sale_date must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.SaleDate = &saleDate
	}

	sale, err := h.sales.RecordSale(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, saleResponse{Sale: buildSalePayload(sale)})
}

func (h *SaleHandlers) reverseSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sales == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sale_service_unavailable", "sale service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	reversal, err := h.sales.ReverseSale(ctx, services.ReverseSaleCommand{
		Actor:  actorFromIdentity(identity),
		SaleID: chi.URLParam(r, "saleId"),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, saleReversalResponse{
		Sale:            buildSalePayload(reversal.Sale),
		ProductRestored: reversal.ProductRestored,
	})
}

func (h *SaleHandlers) getSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sales == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sale_service_unavailable", "sale service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	sale, err := h.sales.GetSale(ctx, actorFromIdentity(identity), chi.URLParam(r, "saleId"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, saleResponse{Sale: buildSalePayload(sale)})
}

func (h *SaleHandlers) listSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sales == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sale_service_unavailable", "sale service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := h.sales.ListSales(ctx, actorFromIdentity(identity), services.SaleListFilter{
		FarmID:     strings.TrimSpace(query.Get("farm_id")),
		ProductID:  strings.TrimSpace(query.Get("product_id")),
		DateRange:  parseTimeRange(r),
		Pagination: parsePagination(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSaleListResponse(page))
}

func buildSaleListResponse(page domain.CursorPage[domain.Sale]) saleListResponse {
	payload := saleListResponse{
		Sales:         make([]salePayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, sale := range page.Items {
		payload.Sales = append(payload.Sales, buildSalePayload(sale))
	}
	return payload
}

func buildSalePayload(sale services.Sale) salePayload {
	return salePayload{
		ID:           sale.ID,
		ProductID:    sale.ProductID,
		FarmID:       sale.FarmID,
		QuantitySold: sale.QuantitySold,
		PricePerUnit: sale.PricePerUnit,
		TotalAmount:  sale.TotalAmount,
		UnitCost:     sale.UnitCost.String(),
		Profit:       sale.Profit.String(),
		SaleDate:     formatTime(sale.SaleDate),
		CreatedAt:    formatTime(sale.CreatedAt),
	}
}

type recordSaleRequest struct {
	ProductID    string `json:"product_id"`
	QuantitySold int    `json:"quantity_sold"`
	PricePerUnit int64  `json:"price_per_unit"`
	SaleDate     string `json:"sale_date,omitempty"`
}

type saleResponse struct {
	Sale salePayload `json:"sale"`
}

type saleReversalResponse struct {
	Sale            salePayload `json:"sale"`
	ProductRestored bool        `json:"product_restored"`
}

type saleListResponse struct {
	Sales         []salePayload `json:"sales"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

type salePayload struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	FarmID       string `json:"farm_id"`
	QuantitySold int    `json:"quantity_sold"`
	PricePerUnit int64  `json:"price_per_unit"`
	TotalAmount  int64  `json:"total_amount"`
	UnitCost     string `json:"unit_cost"`
	Profit       string `json:"profit"`
	SaleDate     string `json:"sale_date"`
	CreatedAt    string `json:"created_at"`
}
