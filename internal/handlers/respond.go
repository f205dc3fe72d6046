package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/platform/auth"
	"github.com/farmstand/api/internal/platform/httpx"
	"github.com/farmstand/api/internal/services"
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

const maxListPageSize = 100

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, errEmptyBody
	}
	defer func() {
		_ = r.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func decodeJSONBody(r *http.Request, limit int64, out any) error {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.New("invalid JSON payload")
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// writeServiceError translates service layer failures into the API's JSON
// error envelope. Stock and transition failures carry structured details so
// clients can render actionable messages.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var stockErr *services.InsufficientStockError
	if errors.As(err, &stockErr) {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", stockErr.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{
				"item_id":   stockErr.ItemID,
				"available": stockErr.Available,
				"requested": stockErr.Requested,
			}))
		return
	}

	var transitionErr *services.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		allowed := make([]string, 0, len(transitionErr.Allowed))
		for _, status := range transitionErr.Allowed {
			allowed = append(allowed, string(status))
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", transitionErr.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{
				"current_status":   string(transitionErr.Current),
				"target_status":    string(transitionErr.Target),
				"allowed_statuses": allowed,
			}))
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("item_unavailable", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrMissingField):
		httpx.WriteError(ctx, w, httpx.NewError("missing_field", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAccessDenied):
		httpx.WriteError(ctx, w, httpx.NewError("access_denied", "caller may not perform this operation", http.StatusForbidden))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrBackendUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("backend_unavailable", "storage backend unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "request failed", http.StatusInternalServerError))
	}
}

// requireIdentity loads the authenticated identity or writes a 401 response.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.Subject) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func actorFromIdentity(identity *auth.Identity) services.Actor {
	if identity == nil {
		return services.Actor{}
	}
	return services.Actor{
		ID:     identity.Subject,
		Role:   strings.ToLower(strings.TrimSpace(identity.Role)),
		FarmID: strings.TrimSpace(identity.FarmID),
	}
}

func parsePagination(r *http.Request) domain.Pagination {
	query := r.URL.Query()
	page := domain.Pagination{
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			if size > maxListPageSize {
				size = maxListPageSize
			}
			page.PageSize = size
		}
	}
	return page
}

func parseTimeRange(r *http.Request) domain.RangeQuery[time.Time] {
	query := r.URL.Query()
	var rng domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		if from, err := time.Parse(time.RFC3339, raw); err == nil {
			rng.From = &from
		}
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		if to, err := time.Parse(time.RFC3339, raw); err == nil {
			rng.To = &to
		}
	}
	return rng
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return formatTime(*t)
}
