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

func setupChangeLogDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache database keeps the schema visible across pooled
	// connections; the unique name isolates tests from each other.
	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.PriceChange{}))
	return db
}

func strp(s string) *string {
	return &s
}

func priceRow(variationID, productID uuid.UUID, oldPrice, newPrice string) models.PriceChange {
	return models.PriceChange{
		VariationID: variationID,
		ProductID:   productID,
		ChangeType:  models.ChangeTypePrice,
		OldValue:    strp(oldPrice),
		NewValue:    strp(newPrice),
		Mode:        "amount",
		Value:       "2.5",
		Target:      "regular",
	}
}

func TestAppend_StampsOperationFields(t *testing.T) {
	ctx := context.Background()
	db := setupChangeLogDB(t)
	repo := NewChangeLogRepository(db)

	opID := uuid.New().String()
	pid := uuid.New()
	rows := []models.PriceChange{
		priceRow(uuid.New(), pid, "10.00", "12.50"),
		priceRow(uuid.New(), pid, "20.00", "22.50"),
	}

	require.NoError(t, repo.Append(ctx, opID, "Summer sale", "user-1", rows))

	stored, err := repo.OperationRows(ctx, opID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, row := range stored {
		assert.Equal(t, opID, row.OperationID)
		assert.Equal(t, "Summer sale", row.OperationLabel)
		assert.Equal(t, "user-1", row.UserID)
		assert.False(t, row.Reverted)
		assert.False(t, row.CreatedAt.IsZero())
	}
}

func TestAppend_EmptyRowsIsNoop(t *testing.T) {
	ctx := context.Background()
	db := setupChangeLogDB(t)
	repo := NewChangeLogRepository(db)

	require.NoError(t, repo.Append(ctx, uuid.New().String(), "", "", nil))
}

func TestAppend_AccumulatesAcrossChunks(t *testing.T) {
	ctx := context.Background()
	db := setupChangeLogDB(t)
	repo := NewChangeLogRepository(db)

	opID := uuid.New().String()
	pid := uuid.New()
	require.NoError(t, repo.Append(ctx, opID, "big batch", "user-1", []models.PriceChange{
		priceRow(uuid.New(), pid, "10.00", "11.00"),
	}))
	require.NoError(t, repo.Append(ctx, opID, "big batch", "user-1", []models.PriceChange{
		priceRow(uuid.New(), pid, "20.00", "21.00"),
	}))

	rows, err := repo.OperationRows(ctx, opID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRecentOperations_SummarizesAndOrders(t *testing.T) {
	ctx := context.Background()
	db := setupChangeLogDB(t)
	repo := NewChangeLogRepository(db)

	pid := uuid.New()
	firstOp := uuid.New().String()
	require.NoError(t, repo.Append(ctx, firstOp, "first", "user-1", []models.PriceChange{
		priceRow(uuid.New(), pid, "10.00", "11.00"),
		priceRow(uuid.New(), pid, "20.00", "21.00"),
	}))

	secondOp := uuid.New().String()
	require.NoError(t, repo.Append(ctx, secondOp, "second", "user-2", []models.PriceChange{
		priceRow(uuid.New(), pid, "30.00", "31.00"),
	}))

	summaries, err := repo.RecentOperations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, secondOp, summaries[0].OperationID)
	assert.Equal(t, int64(1), summaries[0].Changes)
	assert.Equal(t, firstOp, summaries[1].OperationID)
	assert.Equal(t, int64(2), summaries[1].Changes)
	assert.Equal(t, "first", summaries[1].OperationLabel)
	assert.False(t, summaries[1].IsReverted)
}

func TestMarkRowReverted_SetsSummaryFlag(t *testing.T) {
	ctx := context.Background()
	db := setupChangeLogDB(t)
	repo := NewChangeLogRepository(db)

	opID := uuid.New().String()
	pid := uuid.New()
	require.NoError(t, repo.Append(ctx, opID, "", "", []models.PriceChange{
		priceRow(uuid.New(), pid, "10.00", "11.00"),
		priceRow(uuid.New(), pid, "20.00", "21.00"),
	}))

	rows, err := repo.OperationRows(ctx, opID)
	require.NoError(t, err)

	require.NoError(t, repo.MarkRowReverted(ctx, rows[0].ID))

	summaries, err := repo.RecentOperations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(1), summaries[0].RevertedCount)
	assert.False(t, summaries[0].IsReverted)

	require.NoError(t, repo.MarkRowReverted(ctx, rows[1].ID))
	// Marking the same row again is idempotent
	require.NoError(t, repo.MarkRowReverted(ctx, rows[1].ID))

	summaries, err = repo.RecentOperations(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summaries[0].RevertedCount)
	assert.True(t, summaries[0].IsReverted)
}

func TestMarkOperationReverted(t *testing.T) {
	ctx := context.Background()
	db := setupChangeLogDB(t)
	repo := NewChangeLogRepository(db)

	opID := uuid.New().String()
	pid := uuid.New()
	require.NoError(t, repo.Append(ctx, opID, "", "", []models.PriceChange{
		priceRow(uuid.New(), pid, "10.00", "11.00"),
		priceRow(uuid.New(), pid, "20.00", "21.00"),
	}))

	require.NoError(t, repo.MarkOperationReverted(ctx, opID))

	rows, err := repo.OperationRows(ctx, opID)
	require.NoError(t, err)
	for _, row := range rows {
		assert.True(t, row.Reverted)
	}
}

func TestOperationRow(t *testing.T) {
	ctx := context.Background()
	db := setupChangeLogDB(t)
	repo := NewChangeLogRepository(db)

	opID := uuid.New().String()
	vid := uuid.New()
	require.NoError(t, repo.Append(ctx, opID, "", "", []models.PriceChange{
		priceRow(vid, uuid.New(), "10.00", "11.00"),
	}))

	row, err := repo.OperationRow(ctx, opID, vid)
	require.NoError(t, err)
	assert.Equal(t, vid, row.VariationID)
	assert.Equal(t, "10.00", *row.OldValue)

	_, err = repo.OperationRow(ctx, opID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOperationRows_UnknownOperationIsEmpty(t *testing.T) {
	ctx := context.Background()
	db := setupChangeLogDB(t)
	repo := NewChangeLogRepository(db)

	rows, err := repo.OperationRows(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
