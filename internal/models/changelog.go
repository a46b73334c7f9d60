package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType distinguishes what kind of mutation a change row records
type ChangeType string

const (
	ChangeTypePrice             ChangeType = "price"
	ChangeTypeDefaultAttributes ChangeType = "default_attributes"
)

// PriceChange is one row of the append-only change log. Rows are immutable
// once written except for the Reverted flag. A nil NewValue records a write
// that failed.
type PriceChange struct {
	ID             int64      `json:"id" gorm:"primary_key;autoIncrement"`
	OperationID    string     `json:"operationId" gorm:"type:varchar(36);not null;index:idx_price_changes_operation"`
	OperationLabel string     `json:"operationLabel" gorm:"type:varchar(191)"`
	VariationID    uuid.UUID  `json:"variationId" gorm:"type:uuid;index:idx_price_changes_variation"`
	ProductID      uuid.UUID  `json:"productId" gorm:"type:uuid"`
	ChangeType     ChangeType `json:"changeType" gorm:"not null;default:'price'"`
	OldValue       *string    `json:"oldValue" gorm:"type:varchar(191)"`
	NewValue       *string    `json:"newValue" gorm:"type:varchar(191)"`
	Mode           string     `json:"mode" gorm:"type:varchar(20)"`
	Value          string     `json:"value" gorm:"type:varchar(64)"`
	Target         string     `json:"target" gorm:"type:varchar(20)"`
	UserID         string     `json:"userId" gorm:"type:varchar(64)"`
	CreatedAt      time.Time  `json:"createdAt"`
	Reverted       bool       `json:"reverted" gorm:"not null;default:false"`
}

// OperationSummary is the grouped view of all change rows sharing an
// operation id. An operation is fully reverted when every row is.
type OperationSummary struct {
	OperationID    string    `json:"operation_id"`
	OperationLabel string    `json:"operation_label"`
	UserID         string    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
	Changes        int       `json:"changes"`
	RevertedCount  int       `json:"reverted_count"`
	IsReverted     bool      `json:"is_reverted" gorm:"-"`
}

// TableName returns the table name for the PriceChange model
func (PriceChange) TableName() string {
	return "price_changes"
}
