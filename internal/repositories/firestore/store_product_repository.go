package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/farmstand/api/internal/domain"
	pfirestore "github.com/farmstand/api/internal/platform/firestore"
	"github.com/farmstand/api/internal/repositories"
)

const storeProductsCollection = "storeProducts"

// StoreProductRepository reads storefront listings from Firestore.
type StoreProductRepository struct {
	base     *pfirestore.BaseRepository[storeProductDocument]
	provider *pfirestore.Provider
}

// NewStoreProductRepository constructs a Firestore-backed store product repository.
func NewStoreProductRepository(provider *pfirestore.Provider) (*StoreProductRepository, error) {
	if provider == nil {
		return nil, errors.New("store product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[storeProductDocument](provider, storeProductsCollection, nil, nil)
	return &StoreProductRepository{
		base:     base,
		provider: provider,
	}, nil
}

// FindByID loads a single store product by document ID.
func (r *StoreProductRepository) FindByID(ctx context.Context, storeProductID string) (domain.StoreProduct, error) {
	if r == nil || r.base == nil {
		return domain.StoreProduct{}, errors.New("store product repository not initialised")
	}
	id := strings.TrimSpace(storeProductID)
	if id == "" {
		return domain.StoreProduct{}, errors.New("store product repository: id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.StoreProduct{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindMany resolves the given IDs to store products. Missing IDs are simply
// absent from the returned map.
func (r *StoreProductRepository) FindMany(ctx context.Context, storeProductIDs []string) (map[string]domain.StoreProduct, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("store product repository not initialised")
	}

	found := make(map[string]domain.StoreProduct, len(storeProductIDs))
	if len(storeProductIDs) == 0 {
		return found, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("storeProducts.findMany", err)
	}

	refs := make([]*firestore.DocumentRef, 0, len(storeProductIDs))
	seen := make(map[string]struct{}, len(storeProductIDs))
	for _, raw := range storeProductIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, client.Collection(storeProductsCollection).Doc(id))
	}
	if len(refs) == 0 {
		return found, nil
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("storeProducts.findMany", err)
	}
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		var doc storeProductDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode store product %s: %w", snap.Ref.ID, err)
		}
		found[snap.Ref.ID] = doc.toDomain(snap.Ref.ID)
	}
	return found, nil
}

// ListPublished returns published listings ordered by creation time, newest
// first, with optional farm and category filters.
func (r *StoreProductRepository) ListPublished(ctx context.Context, filter repositories.StoreProductListFilter) (domain.CursorPage[domain.StoreProduct], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.StoreProduct]{}, errors.New("store product repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.StoreProduct]{}, pfirestore.WrapError("storeProducts.listPublished", err)
	}

	query := client.Collection(storeProductsCollection).Query.
		Where("isPublished", "==", true)
	if farmID := strings.TrimSpace(filter.FarmID); farmID != "" {
		query = query.Where("farmId", "==", farmID)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category", "==", category)
	}
	query = query.OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := decodeListCursor(token)
		if err != nil {
			return domain.CursorPage[domain.StoreProduct]{}, pfirestore.WrapError("storeProducts.listPublished", err)
		}
		query = query.StartAfter(cursor.CreatedAt, cursor.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var products []domain.StoreProduct
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.StoreProduct]{}, pfirestore.WrapError("storeProducts.listPublished", err)
		}
		var doc storeProductDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.StoreProduct]{}, fmt.Errorf("decode store product %s: %w", snap.Ref.ID, err)
		}
		products = append(products, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(products) > pageSize
	if hasMore {
		products = products[:pageSize]
	}
	var nextToken string
	if hasMore && len(products) > 0 {
		last := products[len(products)-1]
		encoded, err := encodeListCursor(listCursor{ID: last.ID, CreatedAt: last.CreatedAt})
		if err != nil {
			return domain.CursorPage[domain.StoreProduct]{}, pfirestore.WrapError("storeProducts.listPublished", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.StoreProduct]{
		Items:         products,
		NextPageToken: nextToken,
	}, nil
}

type storeProductDocument struct {
	ProductID      string    `firestore:"productId"`
	FarmID         string    `firestore:"farmId"`
	Name           string    `firestore:"name"`
	Category       string    `firestore:"category,omitempty"`
	Unit           string    `firestore:"unit,omitempty"`
	SellingPrice   int64     `firestore:"sellingPrice"`
	AvailableStock int       `firestore:"availableStock"`
	IsPublished    bool      `firestore:"isPublished"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func (d storeProductDocument) toDomain(id string) domain.StoreProduct {
	return domain.StoreProduct{
		ID:             id,
		ProductID:      strings.TrimSpace(d.ProductID),
		FarmID:         strings.TrimSpace(d.FarmID),
		Name:           strings.TrimSpace(d.Name),
		Category:       strings.TrimSpace(d.Category),
		Unit:           strings.TrimSpace(d.Unit),
		SellingPrice:   d.SellingPrice,
		AvailableStock: d.AvailableStock,
		IsPublished:    d.IsPublished,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

var _ repositories.StoreProductRepository = (*StoreProductRepository)(nil)
