package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/farmstand/api/internal/domain"
	pfirestore "github.com/farmstand/api/internal/platform/firestore"
	"github.com/farmstand/api/internal/repositories"
)

const (
	cartsCollection     = "carts"
	cartLinesCollection = "lines"
)

// CartRepository persists customer cart lines under carts/{customerId}/lines,
// keyed by store product ID so a customer holds at most one line per product.
type CartRepository struct {
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{provider: provider}, nil
}

// ListLines returns every line of the customer cart ordered by the time the
// product was first added.
func (r *CartRepository) ListLines(ctx context.Context, customerID string) ([]domain.CartLine, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("cart repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, errors.New("cart repository: customer id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("carts.listLines", err)
	}

	iter := r.linesRef(client, customerID).
		OrderBy("addedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var lines []domain.CartLine
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("carts.listLines", err)
		}
		var doc cartLineDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode cart line %s: %w", snap.Ref.ID, err)
		}
		lines = append(lines, doc.toDomain(customerID, snap.Ref.ID))
	}
	return lines, nil
}

// GetLine loads the cart line for the given store product.
func (r *CartRepository) GetLine(ctx context.Context, customerID string, storeProductID string) (domain.CartLine, error) {
	if r == nil || r.provider == nil {
		return domain.CartLine{}, errors.New("cart repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	storeProductID = strings.TrimSpace(storeProductID)
	if customerID == "" || storeProductID == "" {
		return domain.CartLine{}, errors.New("cart repository: customer id and store product id are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CartLine{}, pfirestore.WrapError("carts.getLine", err)
	}

	snap, err := r.linesRef(client, customerID).Doc(storeProductID).Get(ctx)
	if err != nil {
		return domain.CartLine{}, pfirestore.WrapError("carts.getLine", err)
	}
	var doc cartLineDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.CartLine{}, fmt.Errorf("decode cart line %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(customerID, snap.Ref.ID), nil
}

// PutLine writes the cart line, overwriting any existing line for the same
// store product.
func (r *CartRepository) PutLine(ctx context.Context, line domain.CartLine) (domain.CartLine, error) {
	if r == nil || r.provider == nil {
		return domain.CartLine{}, errors.New("cart repository not initialised")
	}
	customerID := strings.TrimSpace(line.CustomerID)
	storeProductID := strings.TrimSpace(line.StoreProductID)
	if customerID == "" || storeProductID == "" {
		return domain.CartLine{}, errors.New("cart repository: customer id and store product id are required")
	}
	if line.Quantity <= 0 {
		return domain.CartLine{}, errors.New("cart repository: quantity must be positive")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CartLine{}, pfirestore.WrapError("carts.putLine", err)
	}

	doc := newCartLineDocument(line)
	if _, err := r.linesRef(client, customerID).Doc(storeProductID).Set(ctx, doc); err != nil {
		return domain.CartLine{}, pfirestore.WrapError("carts.putLine", err)
	}
	return doc.toDomain(customerID, storeProductID), nil
}

// DeleteLine removes the line for the given store product. Deleting an absent
// line is not an error.
func (r *CartRepository) DeleteLine(ctx context.Context, customerID string, storeProductID string) error {
	if r == nil || r.provider == nil {
		return errors.New("cart repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	storeProductID = strings.TrimSpace(storeProductID)
	if customerID == "" || storeProductID == "" {
		return errors.New("cart repository: customer id and store product id are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return pfirestore.WrapError("carts.deleteLine", err)
	}
	if _, err := r.linesRef(client, customerID).Doc(storeProductID).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return pfirestore.WrapError("carts.deleteLine", err)
	}
	return nil
}

// ReplaceAll swaps the full cart contents in one transaction. Either every
// existing line is removed and every given line written, or nothing changes.
func (r *CartRepository) ReplaceAll(ctx context.Context, customerID string, lines []domain.CartLine) ([]domain.CartLine, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("cart repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, errors.New("cart repository: customer id is required")
	}
	for _, line := range lines {
		if strings.TrimSpace(line.StoreProductID) == "" {
			return nil, errors.New("cart repository: store product id is required on every line")
		}
		if line.Quantity <= 0 {
			return nil, errors.New("cart repository: quantity must be positive on every line")
		}
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("carts.replaceAll", err)
	}

	var saved []domain.CartLine
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		saved = saved[:0]

		existing, err := tx.Documents(r.linesRef(client, customerID).Query).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range existing {
			if err := tx.Delete(snap.Ref); err != nil {
				return err
			}
		}

		for _, line := range lines {
			storeProductID := strings.TrimSpace(line.StoreProductID)
			doc := newCartLineDocument(line)
			if err := tx.Set(r.linesRef(client, customerID).Doc(storeProductID), doc); err != nil {
				return err
			}
			saved = append(saved, doc.toDomain(customerID, storeProductID))
		}
		return nil
	})
	if err != nil {
		return nil, pfirestore.WrapError("carts.replaceAll", err)
	}
	return saved, nil
}

// Clear removes every line of the customer cart in one transaction.
func (r *CartRepository) Clear(ctx context.Context, customerID string) error {
	if r == nil || r.provider == nil {
		return errors.New("cart repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return errors.New("cart repository: customer id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return pfirestore.WrapError("carts.clear", err)
	}

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(r.linesRef(client, customerID).Query).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range existing {
			if err := tx.Delete(snap.Ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pfirestore.WrapError("carts.clear", err)
	}
	return nil
}

func (r *CartRepository) linesRef(client *firestore.Client, customerID string) *firestore.CollectionRef {
	return client.Collection(cartsCollection).Doc(customerID).Collection(cartLinesCollection)
}

type cartLineDocument struct {
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newCartLineDocument(line domain.CartLine) cartLineDocument {
	addedAt := line.AddedAt.UTC()
	updatedAt := line.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = addedAt
	}
	return cartLineDocument{
		Quantity:  line.Quantity,
		AddedAt:   addedAt,
		UpdatedAt: updatedAt,
	}
}

func (d cartLineDocument) toDomain(customerID, storeProductID string) domain.CartLine {
	return domain.CartLine{
		ID:             storeProductID,
		CustomerID:     customerID,
		StoreProductID: storeProductID,
		Quantity:       d.Quantity,
		AddedAt:        d.AddedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

var _ repositories.CartRepository = (*CartRepository)(nil)
