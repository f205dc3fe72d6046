package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/repositories"
)

var (
	errSaleRepositoryRequired = errors.New("sale service: sale repository is required")
	errSaleProductsRequired   = errors.New("sale service: product repository is required")
	errSaleClockRequired      = errors.New("sale service: clock is required")
)

const (
	saleIDPrefix = "sale_"

	saleEventRecorded = "sale.recorded"
	saleEventReversed = "sale.reversed"
)

// SaleServiceDeps wires the repositories and ambient dependencies for direct sales.
type SaleServiceDeps struct {
	Sales       repositories.SaleRepository
	Products    repositories.ProductRepository
	Events      SaleEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type saleService struct {
	sales    repositories.SaleRepository
	products repositories.ProductRepository
	events   SaleEventPublisher
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewSaleService constructs a SaleService enforcing dependency validation.
func NewSaleService(deps SaleServiceDeps) (SaleService, error) {
	if deps.Sales == nil {
		return nil, errSaleRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errSaleProductsRequired
	}
	if deps.Clock == nil {
		return nil, errSaleClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return saleIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &saleService{
		sales:    deps.Sales,
		products: deps.Products,
		events:   deps.Events,
		now:      func() time.Time { return deps.Clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// RecordSale computes batch-amortised unit cost and profit, persists the sale,
// and decrements the product quantity in the same transaction.
//
// The cost model is a period average: the batch's total recorded expenses are
// spread evenly across every unit ever produced in the batch. Profit figures
// shift retroactively when expenses are added to a batch after some of its
// stock was sold.
func (s *saleService) RecordSale(ctx context.Context, cmd RecordSaleCommand) (Sale, error) {
	if s == nil || s.sales == nil {
		return Sale{}, ErrBackendUnavailable
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Sale{}, fmt.Errorf("%w: product id", ErrMissingField)
	}
	if cmd.QuantitySold <= 0 {
		return Sale{}, fmt.Errorf("%w: quantity sold must be positive", ErrInvalidInput)
	}
	if cmd.PricePerUnit < 0 {
		return Sale{}, fmt.Errorf("%w: price per unit must not be negative", ErrInvalidInput)
	}
	if err := actorMaySell(cmd.Actor); err != nil {
		return Sale{}, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Sale{}, translateRepoError(err)
	}
	if err := actorMayAccessFarm(cmd.Actor, product.FarmID); err != nil {
		return Sale{}, err
	}
	if product.Quantity < cmd.QuantitySold {
		return Sale{}, &InsufficientStockError{
			ItemID:    productID,
			Available: product.Quantity,
			Requested: cmd.QuantitySold,
		}
	}

	unitCost, err := s.unitCost(ctx, product)
	if err != nil {
		return Sale{}, err
	}

	now := s.now()
	saleDate := now
	if cmd.SaleDate != nil && !cmd.SaleDate.IsZero() {
		saleDate = cmd.SaleDate.UTC()
	}

	price := decimal.NewFromInt(cmd.PricePerUnit)
	quantity := decimal.NewFromInt(int64(cmd.QuantitySold))
	profit := price.Sub(unitCost).Mul(quantity)

	sale := Sale{
		ID:           s.newID(),
		ProductID:    productID,
		FarmID:       product.FarmID,
		QuantitySold: cmd.QuantitySold,
		PricePerUnit: cmd.PricePerUnit,
		TotalAmount:  cmd.PricePerUnit * int64(cmd.QuantitySold),
		UnitCost:     unitCost,
		Profit:       profit,
		SaleDate:     saleDate,
		CreatedAt:    now,
	}

	saved, err := s.sales.InsertWithStockDecrement(ctx, sale)
	if err != nil {
		return Sale{}, translateRepoError(err)
	}

	s.logger(ctx, "sale.recorded", map[string]any{
		"saleID":    saved.ID,
		"productID": saved.ProductID,
		"quantity":  saved.QuantitySold,
	})
	s.publishEvent(ctx, SaleEvent{
		Type:       saleEventRecorded,
		SaleID:     saved.ID,
		ProductID:  saved.ProductID,
		FarmID:     saved.FarmID,
		OccurredAt: now,
	})
	return saved, nil
}

// ReverseSale restores the sold quantity to the product, forces its status
// back to unsold, and deletes the sale record. A sale whose product no longer
// exists is still deleted; the result reports the skipped restoration.
func (s *saleService) ReverseSale(ctx context.Context, cmd ReverseSaleCommand) (SaleReversal, error) {
	if s == nil || s.sales == nil {
		return SaleReversal{}, ErrBackendUnavailable
	}
	saleID := strings.TrimSpace(cmd.SaleID)
	if saleID == "" {
		return SaleReversal{}, fmt.Errorf("%w: sale id", ErrMissingField)
	}
	if err := actorMaySell(cmd.Actor); err != nil {
		return SaleReversal{}, err
	}

	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return SaleReversal{}, translateRepoError(err)
	}
	if err := actorMayAccessFarm(cmd.Actor, sale.FarmID); err != nil {
		return SaleReversal{}, err
	}

	result, err := s.sales.DeleteWithStockRestore(ctx, saleID)
	if err != nil {
		return SaleReversal{}, translateRepoError(err)
	}

	s.logger(ctx, "sale.reversed", map[string]any{
		"saleID":          saleID,
		"productID":       result.Sale.ProductID,
		"productRestored": result.ProductRestored,
	})
	s.publishEvent(ctx, SaleEvent{
		Type:       saleEventReversed,
		SaleID:     result.Sale.ID,
		ProductID:  result.Sale.ProductID,
		FarmID:     result.Sale.FarmID,
		OccurredAt: s.now(),
	})
	return SaleReversal{
		Sale:            result.Sale,
		ProductRestored: result.ProductRestored,
	}, nil
}

// GetSale loads a sale the actor is allowed to see.
func (s *saleService) GetSale(ctx context.Context, actor Actor, saleID string) (Sale, error) {
	if s == nil || s.sales == nil {
		return Sale{}, ErrBackendUnavailable
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return Sale{}, fmt.Errorf("%w: sale id", ErrMissingField)
	}

	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return Sale{}, translateRepoError(err)
	}
	if err := actorMayAccessFarm(actor, sale.FarmID); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// ListSales lists sales scoped to the actor's farm unless the actor is admin.
func (s *saleService) ListSales(ctx context.Context, actor Actor, filter SaleListFilter) (domain.CursorPage[Sale], error) {
	if s == nil || s.sales == nil {
		return domain.CursorPage[Sale]{}, ErrBackendUnavailable
	}
	if err := actorMaySell(actor); err != nil {
		return domain.CursorPage[Sale]{}, err
	}

	repoFilter := repositories.SaleListFilter{
		FarmID:     strings.TrimSpace(filter.FarmID),
		ProductID:  strings.TrimSpace(filter.ProductID),
		DateRange:  filter.DateRange,
		Pagination: filter.Pagination,
	}
	if actor.IsFarmManager() {
		if strings.TrimSpace(actor.FarmID) == "" {
			return domain.CursorPage[Sale]{}, ErrAccessDenied
		}
		repoFilter.FarmID = actor.FarmID
	}

	page, err := s.sales.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Sale]{}, translateRepoError(err)
	}
	return page, nil
}

// unitCost returns the product's base unit price plus its batch expense share.
// A batch with no recorded quantity contributes no expense share.
func (s *saleService) unitCost(ctx context.Context, product Product) (decimal.Decimal, error) {
	base := decimal.NewFromInt(product.UnitPrice)
	batchID := strings.TrimSpace(product.BatchID)
	if batchID == "" {
		return base, nil
	}

	totals, err := s.products.BatchTotals(ctx, product.FarmID, batchID)
	if err != nil {
		return decimal.Decimal{}, translateRepoError(err)
	}
	if totals.QuantityTotal <= 0 {
		return base, nil
	}

	share := decimal.NewFromInt(totals.ExpenseTotal).Div(decimal.NewFromInt(int64(totals.QuantityTotal)))
	return base.Add(share), nil
}

func (s *saleService) publishEvent(ctx context.Context, event SaleEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSaleEvent(ctx, event); err != nil {
		s.logger(ctx, "sale.event_publish_failed", map[string]any{
			"saleID": event.SaleID,
			"type":   event.Type,
			"error":  err.Error(),
		})
	}
}

func actorMaySell(actor Actor) error {
	if actor.IsAdmin() || actor.IsFarmManager() {
		return nil
	}
	return ErrAccessDenied
}

func actorMayAccessFarm(actor Actor, farmID string) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsFarmManager():
		if actor.FarmID != "" && actor.FarmID == farmID {
			return nil
		}
	}
	return ErrAccessDenied
}
