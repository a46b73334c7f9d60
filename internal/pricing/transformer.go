// Package pricing computes and applies price and default-attribute
// transformations against the catalog.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/repository"
)

var (
	ErrVariationNotFound  = errors.New("variation not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrNotVariableProduct = errors.New("product is not a variable product")
)

// Value bounds per mode. Clamping is a correctness boundary: out-of-range
// inputs are coerced, never rejected.
const (
	MaxPercent = 1000.0
	MaxAmount  = 999999.0
	MaxFixed   = 999999999.0
)

// ClampValue coerces a transform value into the valid range for its mode
func ClampValue(mode models.PriceMode, value float64) float64 {
	switch mode {
	case models.ModeFixed:
		if value < 0 {
			return 0
		}
		if value > MaxFixed {
			return MaxFixed
		}
	case models.ModeAmount:
		if value < -MaxAmount {
			return -MaxAmount
		}
		if value > MaxAmount {
			return MaxAmount
		}
	default: // percent
		if value < -MaxPercent {
			return -MaxPercent
		}
		if value > MaxPercent {
			return MaxPercent
		}
	}
	return value
}

// Transformer computes new prices and performs catalog writes
type Transformer struct {
	catalog  repository.CatalogRepositoryInterface
	decimals int32
}

func NewTransformer(catalog repository.CatalogRepositoryInterface, priceDecimals int) *Transformer {
	if priceDecimals < 0 {
		priceDecimals = 2
	}
	return &Transformer{
		catalog:  catalog,
		decimals: int32(priceDecimals),
	}
}

// ComputeNewPrice derives a new price from an old price and a clamped
// transform value. The result is rounded decimally (never binary-float
// truncated) to the configured currency precision.
func (t *Transformer) ComputeNewPrice(oldPrice string, mode models.PriceMode, value float64) string {
	old, err := decimal.NewFromString(oldPrice)
	if err != nil {
		old = decimal.Zero
	}

	value = ClampValue(mode, value)
	v := decimal.NewFromFloat(value)

	var newPrice decimal.Decimal
	switch mode {
	case models.ModeFixed:
		newPrice = v
	case models.ModeAmount:
		newPrice = old.Add(v)
	default: // percent
		factor := decimal.NewFromInt(1).Add(v.Div(decimal.NewFromInt(100)))
		newPrice = old.Mul(factor)
	}

	return newPrice.Round(t.decimals).StringFixed(t.decimals)
}

// FormatPrice normalizes a price string to the configured precision. An
// empty price means "unset" (e.g. no sale price) and stays empty.
func (t *Transformer) FormatPrice(price string) string {
	if price == "" {
		return ""
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		d = decimal.Zero
	}
	return d.Round(t.decimals).StringFixed(t.decimals)
}

// WritePrice persists a new price to the given target field of a
// variation. The variation is re-fetched on every call; queued jobs can
// run long after scheduling and must not act on stale state.
func (t *Transformer) WritePrice(ctx context.Context, variationID uuid.UUID, target models.PriceTarget, newPrice string) error {
	variation, err := t.catalog.GetVariation(ctx, variationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVariationNotFound
		}
		return fmt.Errorf("load variation %s: %w", variationID, err)
	}

	variation.SetPrice(target, t.FormatPrice(newPrice))

	if err := t.catalog.SaveVariation(ctx, variation); err != nil {
		return fmt.Errorf("save variation %s: %w", variationID, err)
	}
	return nil
}

// SetDefaultAttributes validates and persists a variable product's default
// attribute selection. Incoming values are resolved to canonical term
// slugs (exact slug, then name search); keys not declared on the product
// and values that fail to resolve are silently dropped, so the written set
// is never partially invalid. Returns the accepted subset.
func (t *Transformer) SetDefaultAttributes(ctx context.Context, productID uuid.UUID, attrs map[string]string) (map[string]string, error) {
	product, err := t.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}

	if product.Type != models.ProductTypeVariable {
		return nil, ErrNotVariableProduct
	}

	accepted := make(map[string]string, len(attrs))
	for key, value := range attrs {
		if key == "" || value == "" {
			continue
		}
		if !product.Attributes.Contains(key) {
			continue
		}

		slug, ok := t.resolveTermSlug(ctx, key, value)
		if !ok {
			continue
		}
		accepted[key] = slug
	}

	defaults := make(models.JSON, len(accepted))
	for key, slug := range accepted {
		defaults[key] = slug
	}

	if err := t.catalog.UpdateDefaultAttributes(ctx, productID, defaults); err != nil {
		return nil, fmt.Errorf("update defaults for product %s: %w", productID, err)
	}
	return accepted, nil
}

// resolveTermSlug maps a user-supplied value to a canonical term slug.
// Non-taxonomy attributes keep the literal value.
func (t *Transformer) resolveTermSlug(ctx context.Context, attributeKey, value string) (string, bool) {
	exists, err := t.catalog.AttributeExists(ctx, attributeKey)
	if err != nil || !exists {
		// Custom (non-taxonomy) attribute, store as-is
		return value, err == nil
	}

	if term, err := t.catalog.ResolveTermBySlug(ctx, attributeKey, value); err == nil {
		return term.Slug, true
	}

	terms, err := t.catalog.SearchTermsByName(ctx, attributeKey, value)
	if err == nil && len(terms) > 0 {
		return terms[0].Slug, true
	}

	return "", false
}
