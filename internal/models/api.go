package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details *JSON  `json:"details,omitempty"`
}

// VariationIDList accepts both the plain id form ["<uuid>", ...] and the
// legacy object form [{"variation_id": "<uuid>"}, ...] still sent by older
// clients. Both normalize to a deduplicated uuid slice at the boundary.
type VariationIDList []uuid.UUID

func (l *VariationIDList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	seen := make(map[uuid.UUID]bool, len(raw))
	out := make(VariationIDList, 0, len(raw))
	for _, item := range raw {
		var id uuid.UUID
		var plain string
		if err := json.Unmarshal(item, &plain); err == nil {
			parsed, err := uuid.Parse(plain)
			if err != nil {
				return fmt.Errorf("invalid variation id %q: %w", plain, err)
			}
			id = parsed
		} else {
			var obj struct {
				VariationID string `json:"variation_id"`
			}
			if err := json.Unmarshal(item, &obj); err != nil || obj.VariationID == "" {
				return fmt.Errorf("invalid variation entry %s", string(item))
			}
			parsed, err := uuid.Parse(obj.VariationID)
			if err != nil {
				return fmt.Errorf("invalid variation id %q: %w", obj.VariationID, err)
			}
			id = parsed
		}

		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	*l = out
	return nil
}

// UpdateRequest is the body of POST /update
type UpdateRequest struct {
	Variations     VariationIDList `json:"variations"`
	Mode           string          `json:"mode"`
	Value          float64         `json:"value"`
	Target         string          `json:"target"`
	DryRun         *bool           `json:"dry_run"`
	OperationLabel string          `json:"operation_label"`
}

// SetDefaultsRequest is the body of POST /set-defaults. Defaults is keyed
// by product id, each entry mapping attribute key to term slug or name.
type SetDefaultsRequest struct {
	ProductIDs     []uuid.UUID                  `json:"product_ids"`
	Defaults       map[string]map[string]string `json:"defaults"`
	DryRun         *bool                        `json:"dry_run"`
	OperationLabel string                       `json:"operation_label"`
}

// UndoRequest is the body of POST /undo. Items optionally restricts the
// revert to a subset of the operation's variations.
type UndoRequest struct {
	OperationID string          `json:"operation_id"`
	Items       VariationIDList `json:"items"`
	DryRun      *bool           `json:"dry_run"`
}

// VariationAttributeDisplay is one resolved attribute of a variation in
// search results
type VariationAttributeDisplay struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// SearchVariation is one variation row in search results
type SearchVariation struct {
	VariationID  uuid.UUID                   `json:"variation_id"`
	SKU          string                      `json:"sku"`
	Attributes   []VariationAttributeDisplay `json:"attributes"`
	RegularPrice string                      `json:"regular_price"`
	SalePrice    string                      `json:"sale_price"`
}

// DefaultAttributeDisplay is one default-attribute entry in search results
type DefaultAttributeDisplay struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	Value        string `json:"value"`
	DisplayValue string `json:"display_value"`
}

// SearchProduct is one product row in search results, carrying only the
// variations that match the active attribute filter
type SearchProduct struct {
	ProductID            uuid.UUID                 `json:"product_id"`
	Title                string                    `json:"title"`
	SKU                  string                    `json:"sku"`
	Variations           []SearchVariation         `json:"variations"`
	DefaultAttributes    []DefaultAttributeDisplay `json:"default_attributes"`
	DefaultAttributesRaw map[string]string         `json:"default_attributes_raw"`
}

// SearchResponse is the body of GET /search
type SearchResponse struct {
	Products []SearchProduct `json:"products"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
}
