package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/platform/auth"
	"github.com/farmstand/api/internal/platform/httpx"
	"github.com/farmstand/api/internal/platform/textutil"
	"github.com/farmstand/api/internal/services"
)

// OrderHandlers exposes customer facing order endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

const (
	maxOrderBodySize = 32 * 1024

	maxPhoneLength   = 32
	maxAddressLength = 512
	maxReasonLength  = 512
)

// NewOrderHandlers constructs handlers for order placement and lifecycle reads.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the customer /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireRoles(auth.RoleCustomer, auth.RoleAdmin))
	}
	r.Post("/", h.placeOrder)
	r.Post("/checkout", h.placeOrderFromCart)
	r.Get("/", h.listOrders)
	r.Get("/{orderId}", h.getOrder)
	r.Post("/{orderId}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.PlaceOrderCommand{
		CustomerID: identity.Subject,
		Phone:      textutil.CleanTextLimit(req.Phone, maxPhoneLength),
		Address:    textutil.CleanTextLimit(req.Address, maxAddressLength),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.OrderLineRequest{
			StoreProductID: strings.TrimSpace(item.StoreProductID),
			Quantity:       item.Quantity,
		})
	}

	result, err := h.orders.PlaceOrder(ctx, cmd)
	h.writePlacementResult(w, r, result, err)
}

func (h *OrderHandlers) placeOrderFromCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.orders.PlaceOrderFromCart(ctx, services.PlaceOrderFromCartCommand{
		CustomerID: identity.Subject,
		Phone:      textutil.CleanTextLimit(req.Phone, maxPhoneLength),
		Address:    textutil.CleanTextLimit(req.Address, maxAddressLength),
	})
	h.writePlacementResult(w, r, result, err)
}

// writePlacementResult reports created orders even when a later farm group
// failed. Clients compare orders_count against the farms they requested.
func (h *OrderHandlers) writePlacementResult(w http.ResponseWriter, r *http.Request, result services.PlaceOrderResult, err error) {
	ctx := r.Context()
	if err != nil && len(result.Orders) == 0 {
		writeServiceError(ctx, w, err)
		return
	}

	payload := placeOrderResponse{
		OrdersCount: len(result.Orders),
		Orders:      make([]orderPayload, 0, len(result.Orders)),
	}
	for _, order := range result.Orders {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	if err != nil {
		payload.PartialFailure = err.Error()
		writeJSONResponse(w, http.StatusMultiStatus, payload)
		return
	}
	writeJSONResponse(w, http.StatusCreated, payload)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	filter := services.OrderListFilter{
		DateRange:  parseTimeRange(r),
		Pagination: parsePagination(r),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, status := range strings.Split(raw, ",") {
			filter.Status = append(filter.Status, domain.OrderStatus(strings.TrimSpace(status)))
		}
	}

	page, err := h.orders.ListOrders(ctx, actorFromIdentity(identity), filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, actorFromIdentity(identity), chi.URLParam(r, "orderId"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		Actor:   actorFromIdentity(identity),
		OrderID: chi.URLParam(r, "orderId"),
		Reason:  textutil.CleanTextLimit(req.Reason, maxReasonLength),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func buildOrderListResponse(page domain.CursorPage[domain.Order]) orderListResponse {
	payload := orderListResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	return payload
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:          order.ID,
		Number:      order.Number,
		CustomerID:  order.CustomerID,
		FarmID:      order.FarmID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		FinalAmount: order.FinalAmount,
		Phone:       order.Phone,
		Address:     order.Address,
		Items:       make([]orderItemPayload, 0, len(order.Items)),
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			StoreProductID: item.StoreProductID,
			ProductName:    item.ProductName,
			Category:       item.Category,
			Unit:           item.Unit,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			LineTotal:      item.LineTotal,
		})
	}

	payload.DeliveryFee = order.DeliveryFee
	if order.CancellationReason != nil {
		payload.CancellationReason = *order.CancellationReason
	}
	if order.CourierContact != nil {
		payload.CourierContact = *order.CourierContact
	}
	if order.CourierRefID != nil {
		payload.CourierRefID = *order.CourierRefID
	}
	if order.PaymentInfo != nil {
		payload.PaymentInfo = *order.PaymentInfo
	}
	payload.ConfirmedAt = formatTimePtr(order.ConfirmedAt)
	payload.ShippedAt = formatTimePtr(order.ShippedAt)
	payload.DeliveredAt = formatTimePtr(order.DeliveredAt)
	payload.CancelledAt = formatTimePtr(order.CancelledAt)
	return payload
}

type placeOrderRequest struct {
	Items   []orderLineRequest `json:"items"`
	Phone   string             `json:"phone"`
	Address string             `json:"address"`
}

type orderLineRequest struct {
	StoreProductID string `json:"store_product_id"`
	Quantity       int    `json:"quantity"`
}

type checkoutRequest struct {
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type placeOrderResponse struct {
	OrdersCount    int            `json:"orders_count"`
	Orders         []orderPayload `json:"orders"`
	PartialFailure string         `json:"partial_failure,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	ID                 string             `json:"id"`
	Number             string             `json:"number"`
	CustomerID         string             `json:"customer_id"`
	FarmID             string             `json:"farm_id"`
	Status             string             `json:"status"`
	Items              []orderItemPayload `json:"items"`
	TotalAmount        int64              `json:"total_amount"`
	DeliveryFee        *int64             `json:"delivery_fee,omitempty"`
	FinalAmount        int64              `json:"final_amount"`
	Phone              string             `json:"phone"`
	Address            string             `json:"address"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CourierContact     string             `json:"courier_contact,omitempty"`
	CourierRefID       string             `json:"courier_ref_id,omitempty"`
	PaymentInfo        string             `json:"payment_info,omitempty"`
	ConfirmedAt        string             `json:"confirmed_at,omitempty"`
	ShippedAt          string             `json:"shipped_at,omitempty"`
	DeliveredAt        string             `json:"delivered_at,omitempty"`
	CancelledAt        string             `json:"cancelled_at,omitempty"`
	CreatedAt          string             `json:"created_at"`
	UpdatedAt          string             `json:"updated_at"`
}

type orderItemPayload struct {
	StoreProductID string `json:"store_product_id"`
	ProductName    string `json:"product_name"`
	Category       string `json:"category,omitempty"`
	Unit           string `json:"unit,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPrice      int64  `json:"unit_price"`
	LineTotal      int64  `json:"line_total"`
}
