package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/farmstand/api/internal/platform/auth"
	"github.com/farmstand/api/internal/platform/httpx"
	"github.com/farmstand/api/internal/services"
)

// CartHandlers exposes the authenticated cart endpoints for the current customer.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

const maxCartBodySize = 16 * 1024

// NewCartHandlers constructs handlers enforcing bearer authentication before
// invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireRoles(auth.RoleCustomer, auth.RoleAdmin))
	}
	r.Get("/", h.getCart)
	r.Put("/", h.syncCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Delete("/items/{storeProductId}", h.removeItem)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	lines, err := h.carts.GetCart(ctx, identity.Subject)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartResponse(lines))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	line, err := h.carts.AddOrUpdateLine(ctx, services.AddCartLineCommand{
		CustomerID:     identity.Subject,
		StoreProductID: strings.TrimSpace(req.StoreProductID),
		Quantity:       req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartLineResponse{Line: buildCartLinePayload(line)})
}

func (h *CartHandlers) syncCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req syncCartRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.SyncCartCommand{CustomerID: identity.Subject}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.SyncCartItem{
			StoreProductID: strings.TrimSpace(item.StoreProductID),
			Quantity:       item.Quantity,
		})
	}

	lines, err := h.carts.SyncCart(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartResponse(lines))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	storeProductID := strings.TrimSpace(chi.URLParam(r, "storeProductId"))
	if err := h.carts.RemoveLine(ctx, identity.Subject, storeProductID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.Clear(ctx, identity.Subject); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildCartResponse(lines []services.CartLine) cartResponse {
	payload := cartResponse{Lines: make([]cartLinePayload, 0, len(lines))}
	for _, line := range lines {
		payload.Lines = append(payload.Lines, buildCartLinePayload(line))
	}
	payload.ItemsCount = len(payload.Lines)
	return payload
}

func buildCartLinePayload(line services.CartLine) cartLinePayload {
	payload := cartLinePayload{
		StoreProductID: line.StoreProductID,
		Quantity:       line.Quantity,
	}
	if !line.AddedAt.IsZero() {
		payload.AddedAt = formatTime(line.AddedAt)
	}
	if !line.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(line.UpdatedAt)
	}
	return payload
}

type cartResponse struct {
	Lines      []cartLinePayload `json:"lines"`
	ItemsCount int               `json:"items_count"`
}

type cartLineResponse struct {
	Line cartLinePayload `json:"line"`
}

type cartLinePayload struct {
	StoreProductID string `json:"store_product_id"`
	Quantity       int    `json:"quantity"`
	AddedAt        string `json:"added_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

type cartItemRequest struct {
	StoreProductID string `json:"store_product_id"`
	Quantity       int    `json:"quantity"`
}

type syncCartRequest struct {
	Items []cartItemRequest `json:"items"`
}
