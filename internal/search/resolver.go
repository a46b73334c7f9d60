// Package search resolves free-text queries and attribute filter
// expressions into concrete product and variation id sets.
package search

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/repository"
)

// Operator combines per-attribute result sets
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
)

// ParseOperator normalizes an operator string, defaulting to AND
func ParseOperator(s string) Operator {
	if strings.EqualFold(strings.TrimSpace(s), string(OperatorOr)) {
		return OperatorOr
	}
	return OperatorAnd
}

// AttributePair is one attribute filter: a taxonomy key and a value that
// may be a canonical term slug or free text matched against term names
type AttributePair struct {
	Key   string
	Value string
}

// ParsePairs parses "taxonomy|value" filter strings. Malformed entries are
// skipped.
func ParsePairs(raw []string) []AttributePair {
	pairs := make([]AttributePair, 0, len(raw))
	for _, item := range raw {
		parts := strings.SplitN(item, "|", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		pairs = append(pairs, AttributePair{Key: key, Value: value})
	}
	return pairs
}

// Resolver maps text queries and attribute filters onto product ids
type Resolver struct {
	catalog repository.CatalogRepositoryInterface
	logger  *logrus.Entry
}

func NewResolver(catalog repository.CatalogRepositoryInterface, logger *logrus.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		logger:  logger.WithField("component", "search.resolver"),
	}
}

// ResolveByText matches the query against product titles, product SKUs and
// variation SKUs (variations map to their parent product) and returns the
// deduplicated union. An empty query means "no text constraint" and
// returns (nil, false).
func (r *Resolver) ResolveByText(ctx context.Context, query string) ([]uuid.UUID, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false, nil
	}

	byTitle, err := r.catalog.SearchProductIDsByTitle(ctx, query)
	if err != nil {
		return nil, false, err
	}
	bySKU, err := r.catalog.SearchProductIDsBySKU(ctx, query)
	if err != nil {
		return nil, false, err
	}
	byVariationSKU, err := r.catalog.ParentIDsByVariationSKU(ctx, query)
	if err != nil {
		return nil, false, err
	}

	return dedupe(byTitle, bySKU, byVariationSKU), true, nil
}

// ResolveByAttributes maps attribute pairs onto the set of product ids
// that carry a matching variation or a matching product-level term. Values
// for the same key union; sets across keys combine per the operator.
// Empty pairs signal "no filter", returning (nil, false).
func (r *Resolver) ResolveByAttributes(ctx context.Context, pairs []AttributePair, operator Operator) ([]uuid.UUID, bool, error) {
	if len(pairs) == 0 {
		return nil, false, nil
	}

	// Group values by attribute key; multiple values per key union
	valuesByKey := make(map[string][]string)
	keyOrder := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if _, seen := valuesByKey[pair.Key]; !seen {
			keyOrder = append(keyOrder, pair.Key)
		}
		valuesByKey[pair.Key] = append(valuesByKey[pair.Key], pair.Value)
	}

	perKeySets := make([][]uuid.UUID, 0, len(keyOrder))
	for _, key := range keyOrder {
		exists, err := r.catalog.AttributeExists(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if !exists {
			r.logger.WithField("attribute", key).Debug("Skipping unknown attribute taxonomy")
			perKeySets = append(perKeySets, nil)
			continue
		}

		slugs, err := r.resolveValueSlugs(ctx, key, valuesByKey[key])
		if err != nil {
			return nil, false, err
		}

		variationParents, err := r.catalog.ParentIDsByAttributeSlugs(ctx, key, slugs)
		if err != nil {
			return nil, false, err
		}
		taggedProducts, err := r.catalog.ProductIDsTaggedWithTerms(ctx, key, slugs)
		if err != nil {
			return nil, false, err
		}

		perKeySets = append(perKeySets, dedupe(variationParents, taggedProducts))
	}

	if operator == OperatorOr {
		return dedupe(perKeySets...), true, nil
	}
	return intersect(perKeySets), true, nil
}

// Combine merges the text and attribute result sets. Both active:
// intersection. One active: that set. Neither: unfiltered is signalled
// with a nil slice and false.
func (r *Resolver) Combine(textIDs []uuid.UUID, textActive bool, attrIDs []uuid.UUID, attrActive bool) ([]uuid.UUID, bool) {
	switch {
	case textActive && attrActive:
		return intersect([][]uuid.UUID{textIDs, attrIDs}), true
	case textActive:
		return textIDs, true
	case attrActive:
		return attrIDs, true
	default:
		return nil, false
	}
}

// FilterVariationsByAttributes narrows variation ids to those satisfying
// every pair. This is always AND, independent of the operator used for
// product resolution: once a product matched, only variations matching the
// full filter are displayed.
func (r *Resolver) FilterVariationsByAttributes(ctx context.Context, variationIDs []uuid.UUID, pairs []AttributePair) ([]uuid.UUID, error) {
	if len(variationIDs) == 0 || len(pairs) == 0 {
		return variationIDs, nil
	}

	filtered := make([]uuid.UUID, 0, len(variationIDs))
	for _, vid := range variationIDs {
		attrs, err := r.catalog.VariationAttributes(ctx, vid)
		if err != nil {
			return nil, err
		}

		matchesAll := true
		for _, pair := range pairs {
			if !r.variationMatchesPair(ctx, attrs, pair) {
				matchesAll = false
				break
			}
		}
		if matchesAll {
			filtered = append(filtered, vid)
		}
	}
	return filtered, nil
}

func (r *Resolver) variationMatchesPair(ctx context.Context, attrs map[string]string, pair AttributePair) bool {
	stored, ok := attrs[pair.Key]
	if !ok {
		return false
	}
	if stored == pair.Value {
		return true
	}

	exists, err := r.catalog.AttributeExists(ctx, pair.Key)
	if err != nil || !exists {
		return false
	}

	if term, err := r.catalog.ResolveTermBySlug(ctx, pair.Key, pair.Value); err == nil {
		if stored == term.Slug {
			return true
		}
	}

	terms, err := r.catalog.SearchTermsByName(ctx, pair.Key, pair.Value)
	if err != nil {
		return false
	}
	for _, term := range terms {
		if stored == term.Slug {
			return true
		}
	}
	return false
}

// resolveValueSlugs maps the provided values to canonical term slugs:
// exact slug first, then name-substring search. Values that resolve to
// nothing pass through literally so a slug the taxonomy cache has not seen
// yet still matches. Lenient on purpose: in a search UI a false positive
// is cheaper than a false negative.
func (r *Resolver) resolveValueSlugs(ctx context.Context, key string, values []string) ([]string, error) {
	seen := make(map[string]bool)
	slugs := make([]string, 0, len(values))

	add := func(slug string) {
		if slug != "" && !seen[slug] {
			seen[slug] = true
			slugs = append(slugs, slug)
		}
	}

	for _, value := range values {
		if value == "" {
			continue
		}

		if term, err := r.catalog.ResolveTermBySlug(ctx, key, value); err == nil {
			add(term.Slug)
			continue
		}

		terms, err := r.catalog.SearchTermsByName(ctx, key, value)
		if err != nil {
			return nil, err
		}
		if len(terms) > 0 {
			for _, term := range terms {
				add(term.Slug)
			}
			continue
		}

		add(value)
	}
	return slugs, nil
}

func dedupe(sets ...[]uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	out := make([]uuid.UUID, 0)
	for _, set := range sets {
		for _, id := range set {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func intersect(sets [][]uuid.UUID) []uuid.UUID {
	if len(sets) == 0 {
		return []uuid.UUID{}
	}

	counts := make(map[uuid.UUID]int)
	for _, set := range sets {
		inSet := make(map[uuid.UUID]bool)
		for _, id := range set {
			if !inSet[id] {
				inSet[id] = true
				counts[id]++
			}
		}
	}

	out := make([]uuid.UUID, 0)
	for _, id := range sets[0] {
		if counts[id] == len(sets) {
			counts[id] = 0 // dedupe within first set
			out = append(out, id)
		}
	}
	return out
}
