package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/search"
)

func newSearchService(t *testing.T, env *testEnv) *SearchService {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	resolver := search.NewResolver(env.catalog, log)
	return NewSearchService(env.catalog, resolver, log)
}

// seedSearchCatalog creates two variable products sharing the pa_color
// taxonomy. "Classic Hoodie" has a deep-blue and a crimson variation,
// "Summer Tee" has a crimson variation only.
func seedSearchCatalog(t *testing.T, env *testEnv) (hoodieID, teeID, blueVarID uuid.UUID) {
	t.Helper()

	env.seedColorTaxonomy(t)
	require.NoError(t, env.db.Create(&models.AttributeTerm{
		ID:           uuid.New(),
		AttributeKey: "pa_color",
		Slug:         "crimson",
		Name:         "Crimson",
	}).Error)

	hoodieID = uuid.New()
	require.NoError(t, env.db.Create(&models.Product{
		ID:         hoodieID,
		Name:       "Classic Hoodie",
		SKU:        "HOODIE-1",
		Type:       models.ProductTypeVariable,
		Status:     "publish",
		Attributes: models.StringArray{"pa_color"},
	}).Error)

	teeID = uuid.New()
	require.NoError(t, env.db.Create(&models.Product{
		ID:         teeID,
		Name:       "Summer Tee",
		SKU:        "TEE-1",
		Type:       models.ProductTypeVariable,
		Status:     "publish",
		Attributes: models.StringArray{"pa_color"},
	}).Error)

	seedVar := func(productID uuid.UUID, sku, slug, price string) uuid.UUID {
		vid := uuid.New()
		require.NoError(t, env.db.Create(&models.ProductVariation{
			ID:           vid,
			ProductID:    productID,
			SKU:          sku,
			RegularPrice: price,
			Status:       "publish",
		}).Error)
		require.NoError(t, env.db.Create(&models.VariationAttribute{
			VariationID:  vid,
			AttributeKey: "pa_color",
			TermSlug:     slug,
		}).Error)
		return vid
	}

	blueVarID = seedVar(hoodieID, "HOODIE-1-BLUE", "deep-blue", "10.00")
	seedVar(hoodieID, "HOODIE-1-CRIMSON", "crimson", "12.00")
	seedVar(teeID, "TEE-1-CRIMSON", "crimson", "8.00")
	return hoodieID, teeID, blueVarID
}

func productByID(products []models.SearchProduct, id uuid.UUID) *models.SearchProduct {
	for i := range products {
		if products[i].ProductID == id {
			return &products[i]
		}
	}
	return nil
}

func TestSearch_UnfilteredBrowseListsVariableProductsOnly(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	hoodieID, teeID, _ := seedSearchCatalog(t, env)

	require.NoError(t, env.db.Create(&models.Product{
		ID:     uuid.New(),
		Name:   "Gift Card",
		SKU:    "GIFT-1",
		Type:   models.ProductTypeSimple,
		Status: "publish",
	}).Error)

	svc := newSearchService(t, env)
	result, err := svc.Search(ctx, SearchInput{Page: 1, PerPage: 10})
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Total)
	require.Len(t, result.Products, 2)
	assert.NotNil(t, productByID(result.Products, hoodieID))
	assert.NotNil(t, productByID(result.Products, teeID))
}

func TestSearch_AttributeFilterNarrowsVariationsPerProduct(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	hoodieID, _, blueVarID := seedSearchCatalog(t, env)

	svc := newSearchService(t, env)
	result, err := svc.Search(ctx, SearchInput{
		Pairs:    []search.AttributePair{{Key: "pa_color", Value: "deep-blue"}},
		Operator: search.OperatorAnd,
		Page:     1,
		PerPage:  10,
	})
	require.NoError(t, err)

	// Only the hoodie qualifies, and the crimson variation is dropped even
	// though its parent matched
	require.Len(t, result.Products, 1)
	assert.Equal(t, hoodieID, result.Products[0].ProductID)
	require.Len(t, result.Products[0].Variations, 1)
	assert.Equal(t, blueVarID, result.Products[0].Variations[0].VariationID)
}

func TestSearch_TextFilterMatchesTitle(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	_, teeID, _ := seedSearchCatalog(t, env)

	svc := newSearchService(t, env)
	result, err := svc.Search(ctx, SearchInput{Query: "summer", Page: 1, PerPage: 10})
	require.NoError(t, err)

	require.Len(t, result.Products, 1)
	assert.Equal(t, teeID, result.Products[0].ProductID)
	assert.Equal(t, "Summer Tee", result.Products[0].Title)
}

func TestSearch_VariationAttributesUseTermNames(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	hoodieID, _, blueVarID := seedSearchCatalog(t, env)

	svc := newSearchService(t, env)
	result, err := svc.Search(ctx, SearchInput{
		Pairs:    []search.AttributePair{{Key: "pa_color", Value: "deep-blue"}},
		Operator: search.OperatorAnd,
		Page:     1,
		PerPage:  10,
	})
	require.NoError(t, err)

	product := productByID(result.Products, hoodieID)
	require.NotNil(t, product)
	require.Len(t, product.Variations, 1)
	assert.Equal(t, blueVarID, product.Variations[0].VariationID)

	attrs := product.Variations[0].Attributes
	require.Len(t, attrs, 1)
	assert.Equal(t, "pa_color", attrs[0].Key)
	assert.Equal(t, "Color", attrs[0].Label)
	assert.Equal(t, "Deep Blue", attrs[0].Value)
}

func TestSearch_DefaultAttributesCarriedRawAndDisplay(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	hoodieID, _, _ := seedSearchCatalog(t, env)

	require.NoError(t, env.db.Model(&models.Product{}).
		Where("id = ?", hoodieID).
		Update("default_attributes", models.JSON{"pa_color": "deep-blue"}).Error)

	svc := newSearchService(t, env)
	result, err := svc.Search(ctx, SearchInput{Query: "hoodie", Page: 1, PerPage: 10})
	require.NoError(t, err)

	product := productByID(result.Products, hoodieID)
	require.NotNil(t, product)
	assert.Equal(t, map[string]string{"pa_color": "deep-blue"}, product.DefaultAttributesRaw)
	require.Len(t, product.DefaultAttributes, 1)
	assert.Equal(t, "Deep Blue", product.DefaultAttributes[0].DisplayValue)
}

func TestSearch_TextAndAttributeFiltersIntersect(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	seedSearchCatalog(t, env)

	svc := newSearchService(t, env)

	// The tee matches the text filter but has no deep-blue variation
	result, err := svc.Search(ctx, SearchInput{
		Query:    "summer",
		Pairs:    []search.AttributePair{{Key: "pa_color", Value: "deep-blue"}},
		Operator: search.OperatorAnd,
		Page:     1,
		PerPage:  10,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Products)
}

func TestSearch_Pagination(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	seedSearchCatalog(t, env)

	svc := newSearchService(t, env)
	result, err := svc.Search(ctx, SearchInput{Page: 2, PerPage: 1})
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Total)
	assert.Len(t, result.Products, 1)
	assert.Equal(t, 2, result.Page)
	assert.Equal(t, 1, result.PerPage)
}

func TestAttributes_ListsTaxonomyWithTerms(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	seedSearchCatalog(t, env)

	svc := newSearchService(t, env)
	attrs, err := svc.Attributes(ctx)
	require.NoError(t, err)

	require.Len(t, attrs, 1)
	assert.Equal(t, "pa_color", attrs[0].Key)
	assert.Equal(t, "Color", attrs[0].Label)
	assert.Len(t, attrs[0].Terms, 2)
}