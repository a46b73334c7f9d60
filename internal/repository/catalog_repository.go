package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
)

const (
	// AttributesCacheTTL controls how long the attribute taxonomy list is
	// cached. Terms are near-static reference data.
	AttributesCacheTTL = 5 * time.Minute

	attributesCacheKey = "bulkpricer:attributes"
)

var ErrNotFound = errors.New("record not found")

// CatalogRepositoryInterface is the read/write surface over products,
// variations and attribute taxonomies
type CatalogRepositoryInterface interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	GetVariation(ctx context.Context, variationID uuid.UUID) (*models.ProductVariation, error)
	SaveVariation(ctx context.Context, variation *models.ProductVariation) error
	UpdateDefaultAttributes(ctx context.Context, productID uuid.UUID, defaults models.JSON) error
	VariationAttributes(ctx context.Context, variationID uuid.UUID) (map[string]string, error)

	SearchProductIDsByTitle(ctx context.Context, query string) ([]uuid.UUID, error)
	SearchProductIDsBySKU(ctx context.Context, query string) ([]uuid.UUID, error)
	ParentIDsByVariationSKU(ctx context.Context, query string) ([]uuid.UUID, error)
	ParentIDsByAttributeSlugs(ctx context.Context, attributeKey string, slugs []string) ([]uuid.UUID, error)
	ProductIDsTaggedWithTerms(ctx context.Context, attributeKey string, slugs []string) ([]uuid.UUID, error)
	PageVariableProducts(ctx context.Context, ids []uuid.UUID, page, perPage int) ([]models.Product, int64, error)

	AttributeExists(ctx context.Context, key string) (bool, error)
	ResolveTermBySlug(ctx context.Context, attributeKey, slug string) (*models.AttributeTerm, error)
	SearchTermsByName(ctx context.Context, attributeKey, query string) ([]models.AttributeTerm, error)
	ListAttributes(ctx context.Context) ([]models.AttributeWithTerms, error)
	AttributeLabel(ctx context.Context, key string) string
}

// CatalogRepository provides catalog access backed by gorm with Redis
// read-through caching for the attribute taxonomy list
type CatalogRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

var _ CatalogRepositoryInterface = (*CatalogRepository)(nil)

func NewCatalogRepository(db *gorm.DB, redisClient *redis.Client) *CatalogRepository {
	return &CatalogRepository{
		db:    db,
		redis: redisClient,
	}
}

// GetProduct retrieves a product by ID
func (r *CatalogRepository) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", productID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// GetVariation retrieves a variation by ID. Deliberately uncached: queued
// batch jobs may run long after scheduling and must see current state.
func (r *CatalogRepository) GetVariation(ctx context.Context, variationID uuid.UUID) (*models.ProductVariation, error) {
	var variation models.ProductVariation
	if err := r.db.WithContext(ctx).Where("id = ?", variationID).First(&variation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &variation, nil
}

// SaveVariation persists a variation
func (r *CatalogRepository) SaveVariation(ctx context.Context, variation *models.ProductVariation) error {
	variation.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(variation).Error
}

// UpdateDefaultAttributes replaces a product's default attribute selection
func (r *CatalogRepository) UpdateDefaultAttributes(ctx context.Context, productID uuid.UUID, defaults models.JSON) error {
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"default_attributes": defaults,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// VariationAttributes returns a variation's attribute values keyed by
// attribute key
func (r *CatalogRepository) VariationAttributes(ctx context.Context, variationID uuid.UUID) (map[string]string, error) {
	var rows []models.VariationAttribute
	if err := r.db.WithContext(ctx).Where("variation_id = ?", variationID).Find(&rows).Error; err != nil {
		return nil, err
	}

	attrs := make(map[string]string, len(rows))
	for _, row := range rows {
		attrs[row.AttributeKey] = row.TermSlug
	}
	return attrs, nil
}

// SearchProductIDsByTitle matches published products by name substring
func (r *CatalogRepository) SearchProductIDsByTitle(ctx context.Context, query string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("status = ?", "publish").
		Where("LOWER(name) LIKE ?", likePattern(query)).
		Pluck("id", &ids).Error
	return ids, err
}

// SearchProductIDsBySKU matches published products by SKU substring
func (r *CatalogRepository) SearchProductIDsBySKU(ctx context.Context, query string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("status = ?", "publish").
		Where("LOWER(sku) LIKE ?", likePattern(query)).
		Pluck("id", &ids).Error
	return ids, err
}

// ParentIDsByVariationSKU matches variations by SKU substring and returns
// their parent product ids
func (r *CatalogRepository) ParentIDsByVariationSKU(ctx context.Context, query string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.ProductVariation{}).
		Where("status = ?", "publish").
		Where("LOWER(sku) LIKE ?", likePattern(query)).
		Distinct().
		Pluck("product_id", &ids).Error
	return ids, err
}

// ParentIDsByAttributeSlugs returns parent product ids of variations whose
// value for the attribute is among the given slugs
func (r *CatalogRepository) ParentIDsByAttributeSlugs(ctx context.Context, attributeKey string, slugs []string) ([]uuid.UUID, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.VariationAttribute{}).
		Select("DISTINCT product_variations.product_id").
		Joins("JOIN product_variations ON product_variations.id = variation_attributes.variation_id").
		Where("variation_attributes.attribute_key = ?", attributeKey).
		Where("variation_attributes.term_slug IN ?", slugs).
		Scan(&ids).Error
	return ids, err
}

// ProductIDsTaggedWithTerms returns ids of products tagged with any of the
// given terms at the product level
func (r *CatalogRepository) ProductIDsTaggedWithTerms(ctx context.Context, attributeKey string, slugs []string) ([]uuid.UUID, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.ProductAttributeTerm{}).
		Where("attribute_key = ?", attributeKey).
		Where("term_slug IN ?", slugs).
		Distinct().
		Pluck("product_id", &ids).Error
	return ids, err
}

// PageVariableProducts pages through variable products, optionally
// restricted to an id set, preloading variations. A nil id slice means
// unfiltered; an empty non-nil slice means no matches.
func (r *CatalogRepository) PageVariableProducts(ctx context.Context, ids []uuid.UUID, page, perPage int) ([]models.Product, int64, error) {
	if ids != nil && len(ids) == 0 {
		return []models.Product{}, 0, nil
	}

	query := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("type = ?", models.ProductTypeVariable).
		Where("status = ?", "publish")
	if ids != nil {
		query = query.Where("id IN ?", ids)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	offset := (page - 1) * perPage
	err := query.Preload("Variations").
		Order("created_at DESC").
		Offset(offset).Limit(perPage).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// AttributeExists reports whether an attribute taxonomy is registered
func (r *CatalogRepository) AttributeExists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Attribute{}).
		Where("key = ?", key).Count(&count).Error
	return count > 0, err
}

// ResolveTermBySlug finds a term by exact slug
func (r *CatalogRepository) ResolveTermBySlug(ctx context.Context, attributeKey, slug string) (*models.AttributeTerm, error) {
	var term models.AttributeTerm
	err := r.db.WithContext(ctx).
		Where("attribute_key = ? AND slug = ?", attributeKey, slug).
		First(&term).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &term, nil
}

// SearchTermsByName finds terms by name substring
func (r *CatalogRepository) SearchTermsByName(ctx context.Context, attributeKey, query string) ([]models.AttributeTerm, error) {
	var terms []models.AttributeTerm
	err := r.db.WithContext(ctx).
		Where("attribute_key = ?", attributeKey).
		Where("LOWER(name) LIKE ?", likePattern(query)).
		Order("slug ASC").
		Find(&terms).Error
	return terms, err
}

// ListAttributes returns all attribute taxonomies with their terms, cached
// in Redis when available
func (r *CatalogRepository) ListAttributes(ctx context.Context) ([]models.AttributeWithTerms, error) {
	if r.redis != nil {
		val, err := r.redis.Get(ctx, attributesCacheKey).Result()
		if err == nil {
			var cached []models.AttributeWithTerms
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		}
	}

	var attributes []models.Attribute
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&attributes).Error; err != nil {
		return nil, err
	}

	out := make([]models.AttributeWithTerms, 0, len(attributes))
	for _, attr := range attributes {
		var terms []models.AttributeTerm
		if err := r.db.WithContext(ctx).
			Where("attribute_key = ?", attr.Key).
			Order("name ASC").
			Find(&terms).Error; err != nil {
			return nil, err
		}
		out = append(out, models.AttributeWithTerms{
			Key:   attr.Key,
			Label: attr.Label,
			Terms: terms,
		})
	}

	if r.redis != nil {
		if data, err := json.Marshal(out); err == nil {
			r.redis.Set(ctx, attributesCacheKey, data, AttributesCacheTTL)
		}
	}

	return out, nil
}

// AttributeLabel returns the display label for an attribute key, falling
// back to a humanized key when the taxonomy is unknown
func (r *CatalogRepository) AttributeLabel(ctx context.Context, key string) string {
	var attr models.Attribute
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&attr).Error; err == nil {
		return attr.Label
	}

	label := strings.TrimPrefix(key, "pa_")
	label = strings.ReplaceAll(label, "_", " ")
	if label == "" {
		return key
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func likePattern(query string) string {
	return fmt.Sprintf("%%%s%%", strings.ToLower(strings.TrimSpace(query)))
}
