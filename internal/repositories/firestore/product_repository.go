package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/iterator"

	domain "github.com/farmstand/api/internal/domain"
	pfirestore "github.com/farmstand/api/internal/platform/firestore"
	"github.com/farmstand/api/internal/repositories"
)

const (
	productsCollection = "products"
	expensesCollection = "expenses"
)

// ProductRepository reads farm-held stock records and batch costing inputs.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{
		base:     base,
		provider: provider,
	}, nil
}

// FindByID loads a single product by document ID.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// BatchTotals sums expense amounts and product quantities across a batch. A
// batch with no matching documents yields zero totals rather than an error.
func (r *ProductRepository) BatchTotals(ctx context.Context, farmID string, batchID string) (domain.BatchCostTotals, error) {
	if r == nil || r.provider == nil {
		return domain.BatchCostTotals{}, errors.New("product repository not initialised")
	}
	farmID = strings.TrimSpace(farmID)
	batchID = strings.TrimSpace(batchID)
	if farmID == "" || batchID == "" {
		return domain.BatchCostTotals{}, errors.New("product repository: farm id and batch id are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.BatchCostTotals{}, pfirestore.WrapError("products.batchTotals", err)
	}

	var totals domain.BatchCostTotals

	expenseIter := client.Collection(expensesCollection).Query.
		Where("farmId", "==", farmID).
		Where("batchId", "==", batchID).
		Documents(ctx)
	defer expenseIter.Stop()
	for {
		snap, err := expenseIter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.BatchCostTotals{}, pfirestore.WrapError("products.batchTotals", err)
		}
		var doc expenseDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.BatchCostTotals{}, fmt.Errorf("decode expense %s: %w", snap.Ref.ID, err)
		}
		totals.ExpenseTotal += doc.Amount
	}

	productIter := client.Collection(productsCollection).Query.
		Where("farmId", "==", farmID).
		Where("batchId", "==", batchID).
		Documents(ctx)
	defer productIter.Stop()
	for {
		snap, err := productIter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.BatchCostTotals{}, pfirestore.WrapError("products.batchTotals", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.BatchCostTotals{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		totals.QuantityTotal += doc.Quantity
	}

	return totals, nil
}

type productDocument struct {
	FarmID     string    `firestore:"farmId"`
	Name       string    `firestore:"name"`
	Quantity   int       `firestore:"quantity"`
	UnitPrice  int64     `firestore:"unitPrice"`
	TotalValue int64     `firestore:"totalValue"`
	BatchID    string    `firestore:"batchId,omitempty"`
	Status     string    `firestore:"status"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:         id,
		FarmID:     strings.TrimSpace(d.FarmID),
		Name:       strings.TrimSpace(d.Name),
		Quantity:   d.Quantity,
		UnitPrice:  d.UnitPrice,
		TotalValue: d.TotalValue,
		BatchID:    strings.TrimSpace(d.BatchID),
		Status:     domain.ProductStatus(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type expenseDocument struct {
	FarmID    string    `firestore:"farmId"`
	Amount    int64     `firestore:"amount"`
	BatchID   string    `firestore:"batchId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
