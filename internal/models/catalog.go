package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductType represents the type of a product
type ProductType string

const (
	ProductTypeSimple   ProductType = "simple"
	ProductTypeVariable ProductType = "variable"
)

// PriceTarget identifies which price field a change applies to
type PriceTarget string

const (
	TargetRegular PriceTarget = "regular"
	TargetSale    PriceTarget = "sale"
)

// PriceMode represents how a new price is derived from an old one
type PriceMode string

const (
	ModePercent PriceMode = "percent"
	ModeAmount  PriceMode = "amount"
	ModeFixed   PriceMode = "fixed"
	ModeRevert  PriceMode = "revert"
)

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, j)
}

// StringArray type for PostgreSQL JSONB (array of strings)
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = make(StringArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, a)
}

// Contains reports whether the array holds the given value
func (a StringArray) Contains(v string) bool {
	for _, s := range a {
		if s == v {
			return true
		}
	}
	return false
}

// Product represents a catalog product. Only variable products carry
// variations and are eligible for bulk price edits.
type Product struct {
	ID                uuid.UUID           `json:"id" gorm:"type:uuid;primary_key"`
	Name              string              `json:"name" gorm:"not null;index"`
	SKU               string              `json:"sku" gorm:"not null;index"`
	Type              ProductType         `json:"type" gorm:"not null;default:'simple';index"`
	Status            string              `json:"status" gorm:"not null;default:'publish'"`
	// Attribute keys declared on the product (e.g. "pa_color"). Default
	// attributes may only reference declared keys.
	Attributes        StringArray         `json:"attributes" gorm:"type:jsonb"`
	// Default variation selection, attribute key -> term slug
	DefaultAttributes JSON                `json:"defaultAttributes" gorm:"type:jsonb"`
	Variations        []*ProductVariation `json:"variations,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
	DeletedAt         *gorm.DeletedAt     `json:"deletedAt,omitempty" gorm:"index"`
}

// ProductVariation represents a purchasable variation of a variable product
type ProductVariation struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	ProductID    uuid.UUID       `json:"productId" gorm:"type:uuid;not null;index"`
	SKU          string          `json:"sku" gorm:"index"`
	RegularPrice string          `json:"regularPrice" gorm:"not null;default:''"`
	SalePrice    string          `json:"salePrice" gorm:"not null;default:''"`
	Status       string          `json:"status" gorm:"not null;default:'publish'"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	DeletedAt    *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Price returns the price field selected by target
func (v *ProductVariation) Price(target PriceTarget) string {
	if target == TargetSale {
		return v.SalePrice
	}
	return v.RegularPrice
}

// SetPrice sets the price field selected by target
func (v *ProductVariation) SetPrice(target PriceTarget, price string) {
	if target == TargetSale {
		v.SalePrice = price
	} else {
		v.RegularPrice = price
	}
}

// VariationAttribute stores one attribute value of a variation
// (e.g. pa_color -> "deep-blue"). Values are canonical term slugs.
type VariationAttribute struct {
	ID           int64     `json:"id" gorm:"primary_key;autoIncrement"`
	VariationID  uuid.UUID `json:"variationId" gorm:"type:uuid;not null;index:idx_variation_attributes_variation;index:idx_variation_attributes_lookup"`
	AttributeKey string    `json:"attributeKey" gorm:"not null;index:idx_variation_attributes_lookup"`
	TermSlug     string    `json:"termSlug" gorm:"not null;index"`
}

// ProductAttributeTerm assigns a term to a product at the product level,
// independent of any variation (the catalog's taxonomy tagging).
type ProductAttributeTerm struct {
	ID           int64     `json:"id" gorm:"primary_key;autoIncrement"`
	ProductID    uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	AttributeKey string    `json:"attributeKey" gorm:"not null;index:idx_product_attribute_terms_lookup"`
	TermSlug     string    `json:"termSlug" gorm:"not null;index:idx_product_attribute_terms_lookup"`
}

// Attribute represents a global attribute taxonomy (e.g. pa_color / "Color")
type Attribute struct {
	ID    uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Key   string    `json:"key" gorm:"not null;uniqueIndex"`
	Label string    `json:"label" gorm:"not null"`
}

// AttributeTerm represents one canonical term of an attribute taxonomy
type AttributeTerm struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	AttributeKey string    `json:"attributeKey" gorm:"not null;index:idx_attribute_terms_key;index:idx_attribute_terms_slug,unique"`
	Slug         string    `json:"slug" gorm:"not null;index:idx_attribute_terms_slug,unique"`
	Name         string    `json:"name" gorm:"not null;index"`
}

// AttributeWithTerms is the taxonomy shape served to filter UIs
type AttributeWithTerms struct {
	Key   string          `json:"attribute_name"`
	Label string          `json:"label"`
	Terms []AttributeTerm `json:"terms"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the ProductVariation model
func (ProductVariation) TableName() string {
	return "product_variations"
}

// TableName returns the table name for the VariationAttribute model
func (VariationAttribute) TableName() string {
	return "variation_attributes"
}

// TableName returns the table name for the ProductAttributeTerm model
func (ProductAttributeTerm) TableName() string {
	return "product_attribute_terms"
}

// TableName returns the table name for the Attribute model
func (Attribute) TableName() string {
	return "attributes"
}

// TableName returns the table name for the AttributeTerm model
func (AttributeTerm) TableName() string {
	return "attribute_terms"
}
