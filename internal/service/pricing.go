package service

import (
	"context"
	"fmt"
	"time"

	"ecommerce-service/internal/models"
	"ecommerce-service/internal/util"

	"go.uber.org/zap"
)

// taxRatePercent is the fixed tax surcharge applied to the order subtotal.
// Tax is floor(subtotal * rate), integer math on minor currency units.
const taxRatePercent = 2

// Catalog provides product lookups
type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// ProductCache fronts catalog lookups. Cache errors degrade to catalog reads.
type ProductCache interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
	SetProduct(ctx context.Context, product *models.Product) error
}

// PricingService derives order totals from line items
type PricingService struct {
	catalog Catalog
	cache   ProductCache
	logger  *zap.Logger
}

// NewPricingService creates a new pricing service
func NewPricingService(catalog Catalog, cache ProductCache) *PricingService {
	return &PricingService{
		catalog: catalog,
		cache:   cache,
		logger:  util.GetLogger(),
	}
}

// Quote resolves every line's product and returns the order total
// (subtotal plus tax) along with the resolved products keyed by id.
// Any unknown product fails the whole quote; nothing is persisted here.
func (ps *PricingService) Quote(ctx context.Context, items []OrderItemRequest) (int64, map[int64]*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "PricingService.Quote")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PricingLatency.Observe(time.Since(start).Seconds())
	}()

	products, err := ps.resolveProducts(ctx, items)
	if err != nil {
		return 0, nil, err
	}

	var subtotal int64
	for _, item := range items {
		subtotal += products[item.ProductID].Price * int64(item.Quantity)
	}

	total := subtotal + subtotal*taxRatePercent/100
	return total, products, nil
}

// UnitAmountWithTax returns a per-unit display price with the proportional
// tax already embedded, rounded down to minor currency units.
func UnitAmountWithTax(price int64) int64 {
	return price * (100 + taxRatePercent) / 100
}

func (ps *PricingService) resolveProducts(ctx context.Context, items []OrderItemRequest) (map[int64]*models.Product, error) {
	resolved := make(map[int64]*models.Product, len(items))
	var missing []int64

	for _, item := range items {
		if _, ok := resolved[item.ProductID]; ok {
			continue
		}

		product, err := ps.cache.GetProduct(ctx, item.ProductID)
		if err == nil {
			util.ProductCacheHitsTotal.Inc()
			resolved[item.ProductID] = product
			continue
		}

		util.ProductCacheMissesTotal.Inc()
		missing = append(missing, item.ProductID)
	}

	if len(missing) > 0 {
		products, err := ps.catalog.GetProductsByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve products: %w", err)
		}

		for i := range products {
			product := products[i]
			resolved[product.ID] = &product

			if err := ps.cache.SetProduct(ctx, &product); err != nil {
				ps.logger.Warn("Failed to cache product",
					zap.Int64("product_id", product.ID),
					zap.Error(err))
			}
		}
	}

	for _, item := range items {
		if _, ok := resolved[item.ProductID]; !ok {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, models.ErrProductNotFound)
		}
	}

	return resolved, nil
}
