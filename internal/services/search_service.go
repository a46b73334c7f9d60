package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/repository"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/search"
)

// SearchInput is a parsed product search request
type SearchInput struct {
	Query    string
	Pairs    []search.AttributePair
	Operator search.Operator
	Page     int
	PerPage  int
}

// SearchServiceInterface is the listing surface consumed by handlers
type SearchServiceInterface interface {
	Search(ctx context.Context, input SearchInput) (*models.SearchResponse, error)
	Attributes(ctx context.Context) ([]models.AttributeWithTerms, error)
}

// SearchService resolves text and attribute filters into a paged product
// listing with per-variation detail
type SearchService struct {
	catalog  repository.CatalogRepositoryInterface
	resolver *search.Resolver
	logger   *logrus.Entry
}

var _ SearchServiceInterface = (*SearchService)(nil)

func NewSearchService(catalog repository.CatalogRepositoryInterface, resolver *search.Resolver, logger *logrus.Logger) *SearchService {
	return &SearchService{
		catalog:  catalog,
		resolver: resolver,
		logger:   logger.WithField("component", "services.search"),
	}
}

// Search runs both filters, intersects them, pages the result and
// expands each product's variations. With an active attribute filter,
// variations are narrowed again per product so that only matching rows
// appear even when the product qualified through another variation.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*models.SearchResponse, error) {
	textIDs, textActive, err := s.resolver.ResolveByText(ctx, input.Query)
	if err != nil {
		return nil, fmt.Errorf("text filter failed: %w", err)
	}

	attrIDs, attrActive, err := s.resolver.ResolveByAttributes(ctx, input.Pairs, input.Operator)
	if err != nil {
		return nil, fmt.Errorf("attribute filter failed: %w", err)
	}

	ids, filtered := s.resolver.Combine(textIDs, textActive, attrIDs, attrActive)
	if !filtered {
		ids = nil // unfiltered browse
	}

	products, total, err := s.catalog.PageVariableProducts(ctx, ids, input.Page, input.PerPage)
	if err != nil {
		return nil, fmt.Errorf("failed to page products: %w", err)
	}

	out := make([]models.SearchProduct, 0, len(products))
	for i := range products {
		product := &products[i]

		variations, err := s.expandVariations(ctx, product, input.Pairs, attrActive)
		if err != nil {
			return nil, err
		}
		if attrActive && len(variations) == 0 {
			continue
		}

		out = append(out, models.SearchProduct{
			ProductID:            product.ID,
			Title:                product.Name,
			SKU:                  product.SKU,
			Variations:           variations,
			DefaultAttributes:    s.defaultsDisplay(ctx, product),
			DefaultAttributesRaw: defaultsToStrings(product.DefaultAttributes),
		})
	}

	return &models.SearchResponse{
		Products: out,
		Total:    total,
		Page:     input.Page,
		PerPage:  input.PerPage,
	}, nil
}

func (s *SearchService) expandVariations(ctx context.Context, product *models.Product, pairs []search.AttributePair, attrActive bool) ([]models.SearchVariation, error) {
	kept := product.Variations
	if attrActive && len(pairs) > 0 {
		ids := make([]uuid.UUID, 0, len(product.Variations))
		for _, v := range product.Variations {
			ids = append(ids, v.ID)
		}
		matching, err := s.resolver.FilterVariationsByAttributes(ctx, ids, pairs)
		if err != nil {
			return nil, fmt.Errorf("variation narrowing failed: %w", err)
		}
		matchSet := make(map[uuid.UUID]bool, len(matching))
		for _, id := range matching {
			matchSet[id] = true
		}
		kept = kept[:0:0]
		for _, v := range product.Variations {
			if matchSet[v.ID] {
				kept = append(kept, v)
			}
		}
	}

	out := make([]models.SearchVariation, 0, len(kept))
	for _, v := range kept {
		attrs, err := s.catalog.VariationAttributes(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load variation attributes: %w", err)
		}

		display := make([]models.VariationAttributeDisplay, 0, len(attrs))
		for key, slug := range attrs {
			display = append(display, models.VariationAttributeDisplay{
				Key:   key,
				Label: s.catalog.AttributeLabel(ctx, key),
				Value: s.termDisplay(ctx, key, slug),
			})
		}

		out = append(out, models.SearchVariation{
			VariationID:  v.ID,
			SKU:          v.SKU,
			Attributes:   display,
			RegularPrice: v.RegularPrice,
			SalePrice:    v.SalePrice,
		})
	}
	return out, nil
}

func (s *SearchService) defaultsDisplay(ctx context.Context, product *models.Product) []models.DefaultAttributeDisplay {
	raw := defaultsToStrings(product.DefaultAttributes)
	out := make([]models.DefaultAttributeDisplay, 0, len(raw))
	for key, value := range raw {
		out = append(out, models.DefaultAttributeDisplay{
			Key:          key,
			Label:        s.catalog.AttributeLabel(ctx, key),
			Value:        value,
			DisplayValue: s.termDisplay(ctx, key, value),
		})
	}
	return out
}

// termDisplay prefers the term's human name; custom (non-taxonomy) values
// pass through as-is
func (s *SearchService) termDisplay(ctx context.Context, key, slug string) string {
	if term, err := s.catalog.ResolveTermBySlug(ctx, key, slug); err == nil {
		return term.Name
	}
	return slug
}

// Attributes returns the full attribute taxonomy with terms, for filter
// and defaults pickers
func (s *SearchService) Attributes(ctx context.Context) ([]models.AttributeWithTerms, error) {
	return s.catalog.ListAttributes(ctx)
}
