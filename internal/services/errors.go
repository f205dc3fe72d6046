package services

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/repositories"
)

// Sentinel errors shared across the order and inventory services. Handlers map
// these onto HTTP status codes.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates malformed numeric or enum input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingField indicates a required field was absent.
	ErrMissingField = errors.New("missing field")
	// ErrUnavailable indicates the referenced product is unpublished or inactive.
	ErrUnavailable = errors.New("unavailable")
	// ErrEmptyCart indicates a checkout was attempted with no cart lines.
	ErrEmptyCart = errors.New("empty cart")
	// ErrAccessDenied indicates the actor may not operate on the entity.
	ErrAccessDenied = errors.New("access denied")
	// ErrBackendUnavailable indicates the persistence layer cannot serve the request.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrConflict indicates a concurrent modification prevented the write.
	ErrConflict = errors.New("conflict")
)

// InsufficientStockError reports a quantity request that exceeds availability,
// carrying both sides so callers can render the shortfall without a second lookup.
type InsufficientStockError struct {
	ItemID    string
	Available int
	Requested int
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ItemID, e.Available, e.Requested)
}

// InvalidTransitionError reports an illegal order status transition together
// with the legal target set for the current state.
type InvalidTransitionError struct {
	OrderID string
	Current domain.OrderStatus
	Target  domain.OrderStatus
	Allowed []domain.OrderStatus
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("order %s cannot move from %s to %s (allowed: %s)",
		e.OrderID, e.Current, e.Target, strings.Join(allowed, ", "))
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}

// translateRepoError maps persistence failures onto the shared sentinel set.
// Typed stock errors pass through as their service-level equivalents.
func translateRepoError(err error) error {
	if err == nil {
		return nil
	}

	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, stockErr.ItemID)
		case repositories.StockErrorUnpublished:
			return fmt.Errorf("%w: %s", ErrUnavailable, stockErr.ItemID)
		case repositories.StockErrorStaleStatus:
			return fmt.Errorf("%w: %s", ErrConflict, stockErr.Message)
		case repositories.StockErrorInsufficient:
			return &InsufficientStockError{
				ItemID:    stockErr.ItemID,
				Available: stockErr.Available,
				Requested: stockErr.Requested,
			}
		default:
			return fmt.Errorf("%w: %s", ErrBackendUnavailable, stockErr.Message)
		}
	}

	if isRepoNotFound(err) {
		return ErrNotFound
	}
	if isRepoConflict(err) {
		return ErrConflict
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
