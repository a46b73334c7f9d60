package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
)

func setupCatalogDB(t *testing.T) (*gorm.DB, *CatalogRepository) {
	t.Helper()

	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.ProductVariation{},
		&models.VariationAttribute{},
		&models.ProductAttributeTerm{},
		&models.Attribute{},
		&models.AttributeTerm{},
	))

	return db, NewCatalogRepository(db, nil)
}

func seedProduct(t *testing.T, db *gorm.DB, name, sku string, productType models.ProductType) uuid.UUID {
	t.Helper()

	id := uuid.New()
	require.NoError(t, db.Create(&models.Product{
		ID:     id,
		Name:   name,
		SKU:    sku,
		Type:   productType,
		Status: "publish",
	}).Error)
	return id
}

func seedVariation(t *testing.T, db *gorm.DB, productID uuid.UUID, sku, regularPrice string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	require.NoError(t, db.Create(&models.ProductVariation{
		ID:           id,
		ProductID:    productID,
		SKU:          sku,
		RegularPrice: regularPrice,
		Status:       "publish",
	}).Error)
	return id
}

func TestGetVariation_NotFound(t *testing.T) {
	ctx := context.Background()
	_, repo := setupCatalogDB(t)

	_, err := repo.GetVariation(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveVariation_PersistsPriceChange(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)
	pid := seedProduct(t, db, "Hoodie", "H-1", models.ProductTypeVariable)
	vid := seedVariation(t, db, pid, "H-1-S", "10.00")

	variation, err := repo.GetVariation(ctx, vid)
	require.NoError(t, err)

	variation.SetPrice(models.TargetRegular, "12.50")
	require.NoError(t, repo.SaveVariation(ctx, variation))

	reloaded, err := repo.GetVariation(ctx, vid)
	require.NoError(t, err)
	assert.Equal(t, "12.50", reloaded.RegularPrice)
}

func TestSearchProductIDs_CaseInsensitiveSubstring(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)
	hoodie := seedProduct(t, db, "Classic Hoodie", "CH-100", models.ProductTypeVariable)
	seedProduct(t, db, "Linen Shirt", "LS-200", models.ProductTypeVariable)

	byTitle, err := repo.SearchProductIDsByTitle(ctx, "hood")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{hoodie}, byTitle)

	bySKU, err := repo.SearchProductIDsBySKU(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{hoodie}, bySKU)
}

func TestParentIDsByVariationSKU(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)
	pid := seedProduct(t, db, "Hoodie", "H-1", models.ProductTypeVariable)
	seedVariation(t, db, pid, "H-1-SMALL", "10.00")
	seedVariation(t, db, pid, "H-1-LARGE", "12.00")

	parents, err := repo.ParentIDsByVariationSKU(ctx, "h-1-")
	require.NoError(t, err)
	// Two matching variations collapse to one parent
	assert.Equal(t, []uuid.UUID{pid}, parents)
}

func TestParentIDsByAttributeSlugs(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)
	pid := seedProduct(t, db, "Hoodie", "H-1", models.ProductTypeVariable)
	vid := seedVariation(t, db, pid, "H-1-B", "10.00")
	require.NoError(t, db.Create(&models.VariationAttribute{
		VariationID: vid, AttributeKey: "pa_color", TermSlug: "blue",
	}).Error)

	parents, err := repo.ParentIDsByAttributeSlugs(ctx, "pa_color", []string{"blue"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{pid}, parents)

	parents, err = repo.ParentIDsByAttributeSlugs(ctx, "pa_color", []string{"red"})
	require.NoError(t, err)
	assert.Empty(t, parents)
}

func TestPageVariableProducts(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)

	variable1 := seedProduct(t, db, "Hoodie", "H-1", models.ProductTypeVariable)
	variable2 := seedProduct(t, db, "Shirt", "S-1", models.ProductTypeVariable)
	seedProduct(t, db, "Gift Card", "G-1", models.ProductTypeSimple)
	seedVariation(t, db, variable1, "H-1-S", "10.00")

	// nil ids means unfiltered browse; simple products never appear
	products, total, err := repo.PageVariableProducts(ctx, nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, products, 2)

	// Variations are preloaded
	var withVariations *models.Product
	for i := range products {
		if products[i].ID == variable1 {
			withVariations = &products[i]
		}
	}
	require.NotNil(t, withVariations)
	assert.Len(t, withVariations.Variations, 1)

	// An explicit id filter narrows the page
	products, total, err = repo.PageVariableProducts(ctx, []uuid.UUID{variable2}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, products, 1)
	assert.Equal(t, variable2, products[0].ID)

	// A non-nil empty filter means "filters matched nothing"
	products, total, err = repo.PageVariableProducts(ctx, []uuid.UUID{}, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, products)
}

func TestPageVariableProducts_Pagination(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)

	for i := 0; i < 5; i++ {
		seedProduct(t, db, "Product", "P", models.ProductTypeVariable)
	}

	page1, total, err := repo.PageVariableProducts(ctx, nil, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page1, 2)

	page3, _, err := repo.PageVariableProducts(ctx, nil, 3, 2)
	require.NoError(t, err)
	assert.Len(t, page3, 1)
}

func TestUpdateDefaultAttributes_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)
	pid := seedProduct(t, db, "Hoodie", "H-1", models.ProductTypeVariable)

	require.NoError(t, repo.UpdateDefaultAttributes(ctx, pid, models.JSON{"pa_color": "blue"}))

	product, err := repo.GetProduct(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, "blue", product.DefaultAttributes["pa_color"])
}

func TestVariationAttributes(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)
	pid := seedProduct(t, db, "Hoodie", "H-1", models.ProductTypeVariable)
	vid := seedVariation(t, db, pid, "H-1-B", "10.00")
	require.NoError(t, db.Create(&models.VariationAttribute{
		VariationID: vid, AttributeKey: "pa_color", TermSlug: "blue",
	}).Error)
	require.NoError(t, db.Create(&models.VariationAttribute{
		VariationID: vid, AttributeKey: "pa_size", TermSlug: "large",
	}).Error)

	attrs, err := repo.VariationAttributes(ctx, vid)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pa_color": "blue", "pa_size": "large"}, attrs)
}

func TestAttributeLabel_FallsBackToHumanizedKey(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)

	require.NoError(t, db.Create(&models.Attribute{ID: uuid.New(), Key: "pa_color", Label: "Color"}).Error)

	assert.Equal(t, "Color", repo.AttributeLabel(ctx, "pa_color"))
	assert.Equal(t, "Sleeve length", repo.AttributeLabel(ctx, "pa_sleeve_length"))
}

func TestListAttributes_WithoutRedis(t *testing.T) {
	ctx := context.Background()
	db, repo := setupCatalogDB(t)

	require.NoError(t, db.Create(&models.Attribute{ID: uuid.New(), Key: "pa_color", Label: "Color"}).Error)
	require.NoError(t, db.Create(&models.AttributeTerm{ID: uuid.New(), AttributeKey: "pa_color", Slug: "blue", Name: "Blue"}).Error)
	require.NoError(t, db.Create(&models.AttributeTerm{ID: uuid.New(), AttributeKey: "pa_color", Slug: "red", Name: "Red"}).Error)

	attrs, err := repo.ListAttributes(ctx)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "pa_color", attrs[0].Key)
	assert.Len(t, attrs[0].Terms, 2)
}
