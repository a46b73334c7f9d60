package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
)

// ChangeLogRepositoryInterface is the append-only change log. Rows are
// never updated in place except for the reverted flag.
type ChangeLogRepositoryInterface interface {
	Append(ctx context.Context, operationID, label, userID string, rows []models.PriceChange) error
	RecentOperations(ctx context.Context, limit int) ([]models.OperationSummary, error)
	OperationRows(ctx context.Context, operationID string) ([]models.PriceChange, error)
	OperationRow(ctx context.Context, operationID string, variationID uuid.UUID) (*models.PriceChange, error)
	MarkRowReverted(ctx context.Context, rowID int64) error
	MarkOperationReverted(ctx context.Context, operationID string) error
}

// ChangeLogRepository persists price change rows
type ChangeLogRepository struct {
	db *gorm.DB
}

var _ ChangeLogRepositoryInterface = (*ChangeLogRepository)(nil)

func NewChangeLogRepository(db *gorm.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

// Append inserts one row per entry under the given operation id. Calling
// it repeatedly with the same id accumulates rows (one call per chunk).
func (r *ChangeLogRepository) Append(ctx context.Context, operationID, label, userID string, rows []models.PriceChange) error {
	if len(rows) == 0 {
		return nil
	}

	now := time.Now()
	for i := range rows {
		rows[i].ID = 0
		rows[i].OperationID = operationID
		rows[i].OperationLabel = label
		rows[i].UserID = userID
		rows[i].CreatedAt = now
		rows[i].Reverted = false
	}

	return r.db.WithContext(ctx).Create(&rows).Error
}

// RecentOperations groups rows by operation id, newest first
func (r *ChangeLogRepository) RecentOperations(ctx context.Context, limit int) ([]models.OperationSummary, error) {
	var summaries []models.OperationSummary
	err := r.db.WithContext(ctx).Model(&models.PriceChange{}).
		Select("operation_id, MAX(operation_label) as operation_label, MAX(user_id) as user_id, MIN(created_at) as created_at, COUNT(*) as changes, SUM(CASE WHEN reverted THEN 1 ELSE 0 END) as reverted_count").
		Group("operation_id").
		Order("MIN(created_at) DESC").
		Limit(limit).
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}

	for i := range summaries {
		summaries[i].IsReverted = summaries[i].RevertedCount >= summaries[i].Changes
	}
	return summaries, nil
}

// OperationRows returns all rows for an operation in insertion order
func (r *ChangeLogRepository) OperationRows(ctx context.Context, operationID string) ([]models.PriceChange, error) {
	var rows []models.PriceChange
	err := r.db.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// OperationRow returns the single row for an operation and variation
func (r *ChangeLogRepository) OperationRow(ctx context.Context, operationID string, variationID uuid.UUID) (*models.PriceChange, error) {
	var row models.PriceChange
	err := r.db.WithContext(ctx).
		Where("operation_id = ? AND variation_id = ?", operationID, variationID).
		Order("id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// MarkRowReverted flags a single row as reverted. Idempotent.
func (r *ChangeLogRepository) MarkRowReverted(ctx context.Context, rowID int64) error {
	return r.db.WithContext(ctx).Model(&models.PriceChange{}).
		Where("id = ?", rowID).
		Update("reverted", true).Error
}

// MarkOperationReverted flags every row of an operation as reverted.
// Idempotent.
func (r *ChangeLogRepository) MarkOperationReverted(ctx context.Context, operationID string) error {
	return r.db.WithContext(ctx).Model(&models.PriceChange{}).
		Where("operation_id = ?", operationID).
		Update("reverted", true).Error
}
