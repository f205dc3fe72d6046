package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farmstand/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: cart repository is required")
	errCartCatalogRequired    = errors.New("cart service: store product repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

const defaultMaxCartLineQuantity = 999

// CartServiceDeps wires the repositories and ambient dependencies for cart operations.
type CartServiceDeps struct {
	Carts           repositories.CartRepository
	StoreProducts   repositories.StoreProductRepository
	Clock           func() time.Time
	Logger          func(context.Context, string, map[string]any)
	MaxLineQuantity int
}

type cartService struct {
	carts       repositories.CartRepository
	products    repositories.StoreProductRepository
	now         func() time.Time
	logger      func(context.Context, string, map[string]any)
	maxQuantity int
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.StoreProducts == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	maxQuantity := deps.MaxLineQuantity
	if maxQuantity <= 0 {
		maxQuantity = defaultMaxCartLineQuantity
	}

	return &cartService{
		carts:       deps.Carts,
		products:    deps.StoreProducts,
		now:         func() time.Time { return deps.Clock().UTC() },
		logger:      logger,
		maxQuantity: maxQuantity,
	}, nil
}

// GetCart returns every line of the customer cart.
func (s *cartService) GetCart(ctx context.Context, customerID string) ([]CartLine, error) {
	if s == nil || s.carts == nil {
		return nil, ErrBackendUnavailable
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id", ErrMissingField)
	}

	lines, err := s.carts.ListLines(ctx, customerID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return lines, nil
}

// AddOrUpdateLine adds the product to the cart or sums the quantity into the
// existing line. No stock is reserved; availability is only a purchase gate.
func (s *cartService) AddOrUpdateLine(ctx context.Context, cmd AddCartLineCommand) (CartLine, error) {
	if s == nil || s.carts == nil {
		return CartLine{}, ErrBackendUnavailable
	}
	customerID := strings.TrimSpace(cmd.CustomerID)
	storeProductID := strings.TrimSpace(cmd.StoreProductID)
	if customerID == "" || storeProductID == "" {
		return CartLine{}, fmt.Errorf("%w: customer id and store product id", ErrMissingField)
	}
	if cmd.Quantity <= 0 {
		return CartLine{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	product, err := s.products.FindByID(ctx, storeProductID)
	if err != nil {
		return CartLine{}, translateRepoError(err)
	}
	if !product.IsPublished || product.AvailableStock <= 0 {
		return CartLine{}, fmt.Errorf("%w: store product %s", ErrUnavailable, storeProductID)
	}

	now := s.now()
	line := CartLine{
		CustomerID:     customerID,
		StoreProductID: storeProductID,
		Quantity:       cmd.Quantity,
		AddedAt:        now,
		UpdatedAt:      now,
	}

	existing, err := s.carts.GetLine(ctx, customerID, storeProductID)
	switch {
	case err == nil:
		line.Quantity = existing.Quantity + cmd.Quantity
		line.AddedAt = existing.AddedAt
	case isRepoNotFound(err):
		// First add for this product.
	default:
		return CartLine{}, translateRepoError(err)
	}

	if line.Quantity > s.maxQuantity {
		return CartLine{}, fmt.Errorf("%w: quantity exceeds limit of %d", ErrInvalidInput, s.maxQuantity)
	}

	saved, err := s.carts.PutLine(ctx, line)
	if err != nil {
		return CartLine{}, translateRepoError(err)
	}

	s.logger(ctx, "cart.line_upserted", map[string]any{
		"customerID":     customerID,
		"storeProductID": storeProductID,
		"quantity":       saved.Quantity,
	})
	return saved, nil
}

// SyncCart validates every replacement line before making any change, then
// swaps the full cart set atomically. An empty item set clears the cart.
func (s *cartService) SyncCart(ctx context.Context, cmd SyncCartCommand) ([]CartLine, error) {
	if s == nil || s.carts == nil {
		return nil, ErrBackendUnavailable
	}
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id", ErrMissingField)
	}

	merged := make(map[string]int, len(cmd.Items))
	order := make([]string, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		storeProductID := strings.TrimSpace(item.StoreProductID)
		if storeProductID == "" {
			return nil, fmt.Errorf("%w: store product id on every item", ErrMissingField)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidInput, storeProductID)
		}
		if _, seen := merged[storeProductID]; !seen {
			order = append(order, storeProductID)
		}
		merged[storeProductID] += item.Quantity
	}

	products, err := s.products.FindMany(ctx, order)
	if err != nil {
		return nil, translateRepoError(err)
	}
	for _, storeProductID := range order {
		quantity := merged[storeProductID]
		product, ok := products[storeProductID]
		if !ok {
			return nil, fmt.Errorf("%w: store product %s", ErrNotFound, storeProductID)
		}
		if !product.IsPublished {
			return nil, fmt.Errorf("%w: store product %s", ErrUnavailable, storeProductID)
		}
		if quantity > s.maxQuantity {
			return nil, fmt.Errorf("%w: quantity for %s exceeds limit of %d", ErrInvalidInput, storeProductID, s.maxQuantity)
		}
		if product.AvailableStock < quantity {
			return nil, &InsufficientStockError{
				ItemID:    storeProductID,
				Available: product.AvailableStock,
				Requested: quantity,
			}
		}
	}

	now := s.now()
	lines := make([]CartLine, 0, len(order))
	for _, storeProductID := range order {
		lines = append(lines, CartLine{
			CustomerID:     customerID,
			StoreProductID: storeProductID,
			Quantity:       merged[storeProductID],
			AddedAt:        now,
			UpdatedAt:      now,
		})
	}

	saved, err := s.carts.ReplaceAll(ctx, customerID, lines)
	if err != nil {
		return nil, translateRepoError(err)
	}

	s.logger(ctx, "cart.synced", map[string]any{
		"customerID": customerID,
		"lines":      len(saved),
	})
	return saved, nil
}

// RemoveLine deletes the line for the given store product, failing when the
// line does not belong to the customer cart.
func (s *cartService) RemoveLine(ctx context.Context, customerID string, storeProductID string) error {
	if s == nil || s.carts == nil {
		return ErrBackendUnavailable
	}
	customerID = strings.TrimSpace(customerID)
	storeProductID = strings.TrimSpace(storeProductID)
	if customerID == "" || storeProductID == "" {
		return fmt.Errorf("%w: customer id and store product id", ErrMissingField)
	}

	if _, err := s.carts.GetLine(ctx, customerID, storeProductID); err != nil {
		return translateRepoError(err)
	}
	if err := s.carts.DeleteLine(ctx, customerID, storeProductID); err != nil {
		return translateRepoError(err)
	}
	return nil
}

// Clear removes every line of the customer cart.
func (s *cartService) Clear(ctx context.Context, customerID string) error {
	if s == nil || s.carts == nil {
		return ErrBackendUnavailable
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return fmt.Errorf("%w: customer id", ErrMissingField)
	}
	if err := s.carts.Clear(ctx, customerID); err != nil {
		return translateRepoError(err)
	}
	return nil
}
