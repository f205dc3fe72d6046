package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/farmstand/api/internal/domain"
	pfirestore "github.com/farmstand/api/internal/platform/firestore"
	"github.com/farmstand/api/internal/repositories"
)

const salesCollection = "sales"

// SaleRepository persists direct sales together with product stock mutations.
// Recording and reversing a sale run the sale write and the product quantity
// change in one transaction.
type SaleRepository struct {
	base     *pfirestore.BaseRepository[saleDocument]
	products *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewSaleRepository constructs a Firestore-backed sale repository.
func NewSaleRepository(provider *pfirestore.Provider) (*SaleRepository, error) {
	if provider == nil {
		return nil, errors.New("sale repository requires firestore provider")
	}
	return &SaleRepository{
		base:     pfirestore.NewBaseRepository[saleDocument](provider, salesCollection, nil, nil),
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		provider: provider,
	}, nil
}

// InsertWithStockDecrement writes the sale, decrements the product quantity,
// and flips the product status to sold when the quantity reaches zero.
func (r *SaleRepository) InsertWithStockDecrement(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	if r == nil || r.provider == nil {
		return domain.Sale{}, errors.New("sale repository not initialised")
	}
	saleID := strings.TrimSpace(sale.ID)
	productID := strings.TrimSpace(sale.ProductID)
	if saleID == "" || productID == "" {
		return domain.Sale{}, errors.New("sale repository: sale id and product id are required")
	}
	if sale.QuantitySold <= 0 {
		return domain.Sale{}, errors.New("sale repository: quantity sold must be positive")
	}

	var saved domain.Sale
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		saleRef, err := r.base.DocumentRef(ctx, saleID)
		if err != nil {
			return err
		}
		productRef, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}

		snap, err := tx.Get(productRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewStockError(repositories.StockErrorNotFound, productID, fmt.Sprintf("product %s not found", productID), err)
			}
			return err
		}
		var product productDocument
		if err := snap.DataTo(&product); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}
		if product.Quantity < sale.QuantitySold {
			stockErr := repositories.NewStockError(repositories.StockErrorInsufficient, productID, fmt.Sprintf("insufficient quantity for %s", productID), nil)
			stockErr.Available = product.Quantity
			stockErr.Requested = sale.QuantitySold
			return stockErr
		}

		now := sale.CreatedAt.UTC()
		if now.IsZero() {
			now = time.Now().UTC()
		}
		product.Quantity -= sale.QuantitySold
		product.TotalValue = product.UnitPrice * int64(product.Quantity)
		if product.Quantity == 0 {
			product.Status = string(domain.ProductStatusSold)
		}
		product.UpdatedAt = now
		if err := tx.Set(productRef, product); err != nil {
			return err
		}

		doc := newSaleDocument(sale)
		if err := tx.Create(saleRef, doc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewStockError(repositories.StockErrorUnknown, saleID, fmt.Sprintf("sale %s already exists", saleID), err)
			}
			return err
		}

		saved, err = doc.toDomain(saleID)
		return err
	})
	if err != nil {
		return domain.Sale{}, wrapStockError("sales.insert", err)
	}
	return saved, nil
}

// FindByID loads a single sale.
func (r *SaleRepository) FindByID(ctx context.Context, saleID string) (domain.Sale, error) {
	if r == nil || r.base == nil {
		return domain.Sale{}, errors.New("sale repository not initialised")
	}
	id := strings.TrimSpace(saleID)
	if id == "" {
		return domain.Sale{}, errors.New("sale repository: sale id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// DeleteWithStockRestore removes the sale and restores the sold quantity to
// the product, forcing the product status back to unsold. A missing product
// does not block the deletion; the result reports whether stock was restored.
func (r *SaleRepository) DeleteWithStockRestore(ctx context.Context, saleID string) (repositories.SaleReversalResult, error) {
	if r == nil || r.provider == nil {
		return repositories.SaleReversalResult{}, errors.New("sale repository not initialised")
	}
	id := strings.TrimSpace(saleID)
	if id == "" {
		return repositories.SaleReversalResult{}, errors.New("sale repository: sale id is required")
	}

	var result repositories.SaleReversalResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = repositories.SaleReversalResult{}

		saleRef, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		saleSnap, err := tx.Get(saleRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewStockError(repositories.StockErrorNotFound, id, fmt.Sprintf("sale %s not found", id), err)
			}
			return err
		}
		var saleDoc saleDocument
		if err := saleSnap.DataTo(&saleDoc); err != nil {
			return fmt.Errorf("decode sale %s: %w", id, err)
		}
		sale, err := saleDoc.toDomain(id)
		if err != nil {
			return err
		}

		productID := strings.TrimSpace(saleDoc.ProductID)
		restored := false
		if productID != "" {
			productRef, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(productRef)
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			if err == nil {
				var product productDocument
				if err := snap.DataTo(&product); err != nil {
					return fmt.Errorf("decode product %s: %w", productID, err)
				}
				product.Quantity += saleDoc.QuantitySold
				product.TotalValue = product.UnitPrice * int64(product.Quantity)
				product.Status = string(domain.ProductStatusUnsold)
				product.UpdatedAt = time.Now().UTC()
				if err := tx.Set(productRef, product); err != nil {
					return err
				}
				restored = true
			}
		}

		if err := tx.Delete(saleRef); err != nil {
			return err
		}

		result = repositories.SaleReversalResult{
			Sale:            sale,
			ProductRestored: restored,
		}
		return nil
	})
	if err != nil {
		return repositories.SaleReversalResult{}, wrapStockError("sales.reverse", err)
	}
	return result, nil
}

// List returns sales ordered by sale date, newest first, filtered by farm,
// product, and sale date range.
func (r *SaleRepository) List(ctx context.Context, filter repositories.SaleListFilter) (domain.CursorPage[domain.Sale], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Sale]{}, errors.New("sale repository not initialised")
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
		return domain.CursorPage[domain.Sale]{}, pfirestore.WrapError("sales.list", err)
	}

	query := client.Collection(salesCollection).Query
	if farmID := strings.TrimSpace(filter.FarmID); farmID != "" {
		query = query.Where("farmId", "==", farmID)
	}
	if productID := strings.TrimSpace(filter.ProductID); productID != "" {
		query = query.Where("productId", "==", productID)
	}
	if filter.DateRange.From != nil {
		query = query.Where("saleDate", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("saleDate", "<=", filter.DateRange.To.UTC())
	}
	query = query.OrderBy("saleDate", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := decodeListCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Sale]{}, pfirestore.WrapError("sales.list", err)
		}
		query = query.StartAfter(cursor.CreatedAt, cursor.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var sales []domain.Sale
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Sale]{}, pfirestore.WrapError("sales.list", err)
		}
		var doc saleDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Sale]{}, fmt.Errorf("decode sale %s: %w", snap.Ref.ID, err)
		}
		sale, err := doc.toDomain(snap.Ref.ID)
		if err != nil {
			return domain.CursorPage[domain.Sale]{}, err
		}
		sales = append(sales, sale)
	}

	hasMore := len(sales) > pageSize
	if hasMore {
		sales = sales[:pageSize]
	}
	var nextToken string
	if hasMore && len(sales) > 0 {
		last := sales[len(sales)-1]
		encoded, err := encodeListCursor(listCursor{ID: last.ID, CreatedAt: last.SaleDate})
		if err != nil {
			return domain.CursorPage[domain.Sale]{}, pfirestore.WrapError("sales.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Sale]{
		Items:         sales,
		NextPageToken: nextToken,
	}, nil
}

// Decimal fields are stored as strings to keep their fractional precision.
type saleDocument struct {
	ProductID    string    `firestore:"productId"`
	FarmID       string    `firestore:"farmId"`
	QuantitySold int       `firestore:"quantitySold"`
	PricePerUnit int64     `firestore:"pricePerUnit"`
	TotalAmount  int64     `firestore:"totalAmount"`
	UnitCost     string    `firestore:"unitCost"`
	Profit       string    `firestore:"profit"`
	SaleDate     time.Time `firestore:"saleDate"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

func newSaleDocument(sale domain.Sale) saleDocument {
	return saleDocument{
		ProductID:    strings.TrimSpace(sale.ProductID),
		FarmID:       strings.TrimSpace(sale.FarmID),
		QuantitySold: sale.QuantitySold,
		PricePerUnit: sale.PricePerUnit,
		TotalAmount:  sale.TotalAmount,
		UnitCost:     sale.UnitCost.String(),
		Profit:       sale.Profit.String(),
		SaleDate:     sale.SaleDate.UTC(),
		CreatedAt:    sale.CreatedAt.UTC(),
	}
}

func (d saleDocument) toDomain(id string) (domain.Sale, error) {
	unitCost, err := decimal.NewFromString(d.UnitCost)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("decode sale %s unit cost: %w", id, err)
	}
	profit, err := decimal.NewFromString(d.Profit)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("decode sale %s profit: %w", id, err)
	}
	return domain.Sale{
		ID:           id,
		ProductID:    strings.TrimSpace(d.ProductID),
		FarmID:       strings.TrimSpace(d.FarmID),
		QuantitySold: d.QuantitySold,
		PricePerUnit: d.PricePerUnit,
		TotalAmount:  d.TotalAmount,
		UnitCost:     unitCost,
		Profit:       profit,
		SaleDate:     d.SaleDate,
		CreatedAt:    d.CreatedAt,
	}, nil
}

var _ repositories.SaleRepository = (*SaleRepository)(nil)
