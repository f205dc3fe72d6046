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

// AdminOrderHandlers exposes farm-manager and admin order management endpoints.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

const maxCourierFieldLength = 256

// NewAdminOrderHandlers constructs the management surface for order lifecycle control.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /admin/orders endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireRoles(auth.RoleFarmManager, auth.RoleAdmin))
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderId}", h.getOrder)
	r.Post("/{orderId}/status", h.transitionStatus)
	r.Post("/{orderId}/delivery-fee", h.setDeliveryFee)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		FarmID:     strings.TrimSpace(query.Get("farm_id")),
		DateRange:  parseTimeRange(r),
		Pagination: parsePagination(r),
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
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

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminOrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req transitionRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.OrderStatusTransitionCommand{
		Actor:        actorFromIdentity(identity),
		OrderID:      chi.URLParam(r, "orderId"),
		TargetStatus: domain.OrderStatus(strings.TrimSpace(req.Status)),
		DeliveryFee:  req.DeliveryFee,
	}
	if req.CancellationReason != nil {
		cleaned := textutil.CleanTextLimit(*req.CancellationReason, maxReasonLength)
		cmd.CancellationReason = &cleaned
	}
	if req.CourierContact != nil {
		cleaned := textutil.CleanTextLimit(*req.CourierContact, maxCourierFieldLength)
		cmd.CourierContact = &cleaned
	}
	if req.CourierRefID != nil {
		cleaned := textutil.CleanTextLimit(*req.CourierRefID, maxCourierFieldLength)
		cmd.CourierRefID = &cleaned
	}
	if req.PaymentInfo != nil {
		cleaned := textutil.CleanTextLimit(*req.PaymentInfo, maxCourierFieldLength)
		cmd.PaymentInfo = &cleaned
	}

	order, err := h.orders.TransitionStatus(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) setDeliveryFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req deliveryFeeRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.DeliveryFee == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "delivery_fee is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SetDeliveryFee(ctx, services.SetDeliveryFeeCommand{
		Actor:   actorFromIdentity(identity),
		OrderID: chi.URLParam(r, "orderId"),
		Fee:     *req.DeliveryFee,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type transitionRequest struct {
	Status             string  `json:"status"`
	DeliveryFee        *int64  `json:"delivery_fee,omitempty"`
	CancellationReason *string `json:"cancellation_reason,omitempty"`
	CourierContact     *string `json:"courier_contact,omitempty"`
	CourierRefID       *string `json:"courier_ref_id,omitempty"`
	PaymentInfo        *string `json:"payment_info,omitempty"`
}

type deliveryFeeRequest struct {
	DeliveryFee *int64 `json:"delivery_fee"`
}
