package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/quang1403/ecommerce-backend/internal/catalog"
	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/models"
)

// Query carries the per-invocation derived state every strategy works from.
// It is built once by the engine and treated as read-only afterwards.
type Query struct {
	Raw        string
	Normalized string
	Info       *models.ExtractedInfo
	Features   []string
}

// Strategy is one tactic in the cascade. Success=false with a nil error means
// the strategy declined and the next one runs; a non-nil error means the
// attempt itself failed and is recovered at the engine boundary.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, q *Query) (*models.StrategyResult, error)
}

const (
	StrategyExactModel      = "exact_model"
	StrategyBrandBased      = "brand_based"
	StrategyFeatureBased    = "feature_based"
	StrategyFuzzyToken      = "fuzzy_token"
	StrategyFallbackPopular = "fallback_popular"
	StrategyNone            = "none"
)

const fallbackMessage = "Không tìm thấy sản phẩm phù hợp. Dưới đây là một số sản phẩm bán chạy bạn có thể quan tâm."

func declined() (*models.StrategyResult, error) {
	return &models.StrategyResult{Success: false}, nil
}

// exactModelStrategy queries the catalog with the precise criteria built from
// the extracted attributes, with a brand-join retry for catalogs that store
// the brand as a reference.
type exactModelStrategy struct {
	store catalog.Store
	cfg   config.SearchConfig
}

func (s *exactModelStrategy) Name() string { return StrategyExactModel }

func (s *exactModelStrategy) Attempt(ctx context.Context, q *Query) (*models.StrategyResult, error) {
	info := q.Info
	if info.Brand == "" && info.Model == "" && info.Storage == 0 {
		return declined()
	}

	criteria := BuildCriteria(info)

	var products []models.CatalogProduct
	if len(criteria.Or) > 0 {
		found, err := s.store.FindByCriteria(ctx, criteria, s.cfg.ExactLimit)
		if err != nil {
			return nil, err
		}
		products = found
	}

	if len(products) == 0 && info.Brand != "" {
		retried, err := s.brandJoinRetry(ctx, info)
		if err != nil {
			return nil, err
		}
		products = retried
	}

	if len(products) == 0 {
		return declined()
	}

	scored := Score(products, q.Normalized, info)
	return &models.StrategyResult{
		Success:       true,
		Products:      capResults(scored, s.cfg.ResultCap),
		Strategy:      s.Name(),
		ExtractedInfo: info,
	}, nil
}

// brandJoinRetry scans the brand's products and filters by a loose model
// match in memory. The storage constraint stays hard here: a candidate with a
// different storage is excluded unless one of its variant records matches.
func (s *exactModelStrategy) brandJoinRetry(ctx context.Context, info *models.ExtractedInfo) ([]models.CatalogProduct, error) {
	products, err := s.store.FindByBrand(ctx, info.Brand, s.cfg.BrandScanLimit)
	if err != nil {
		return nil, err
	}

	var modelRe *regexp.Regexp
	if info.Model != "" {
		parts := strings.Fields(strings.ToLower(info.Model))
		for i, p := range parts {
			parts[i] = escapeFragment(p)
		}
		modelRe = regexp.MustCompile(`(?i)` + strings.Join(parts, `.*`))
	}

	var kept []models.CatalogProduct
	for _, p := range products {
		if modelRe != nil && !modelRe.MatchString(p.Name) {
			continue
		}
		if info.Storage > 0 && !storageMatches(p, info.Storage) {
			continue
		}
		kept = append(kept, p)
	}
	return kept, nil
}

func storageMatches(p models.CatalogProduct, storage int) bool {
	if p.Storage == storage {
		return true
	}
	for _, v := range p.Variants {
		if v.Storage == storage {
			return true
		}
	}
	return false
}

// brandBasedStrategy returns everything by the extracted brand, ranked.
type brandBasedStrategy struct {
	store catalog.Store
	cfg   config.SearchConfig
}

func (s *brandBasedStrategy) Name() string { return StrategyBrandBased }

func (s *brandBasedStrategy) Attempt(ctx context.Context, q *Query) (*models.StrategyResult, error) {
	if q.Info.Brand == "" {
		return declined()
	}

	products, err := s.store.FindByBrand(ctx, q.Info.Brand, s.cfg.BrandScanLimit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return declined()
	}

	scored := Score(products, q.Normalized, q.Info)
	return &models.StrategyResult{
		Success:       true,
		Products:      capResults(scored, s.cfg.ResultCap),
		Strategy:      s.Name(),
		ExtractedInfo: q.Info,
	}, nil
}

// featureBasedStrategy maps feature keywords to coarse catalog filters.
// Results keep the catalog's rating sort; there is no scoring pass.
type featureBasedStrategy struct {
	store catalog.Store
	cfg   config.SearchConfig
}

func (s *featureBasedStrategy) Name() string { return StrategyFeatureBased }

func (s *featureBasedStrategy) Attempt(ctx context.Context, q *Query) (*models.StrategyResult, error) {
	if len(q.Features) == 0 {
		return declined()
	}

	filters := BuildFeatureFilters(q.Features)
	if filters.Empty() {
		return declined()
	}

	products, err := s.store.FindByFilters(ctx, filters, s.cfg.FeatureLimit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return declined()
	}

	unscored := make([]models.ScoredProduct, 0, len(products))
	for _, p := range products {
		unscored = append(unscored, models.ScoredProduct{CatalogProduct: p})
	}
	return &models.StrategyResult{
		Success:  true,
		Products: capResults(unscored, s.cfg.ResultCap),
		Strategy: s.Name(),
		Features: q.Features,
	}, nil
}

// fuzzyTokenStrategy builds a loosely ordered regex from the model tokens
// followed by up to six other query tokens. It is the most permissive
// matcher, so it runs last before the popular fallback. Storage remains a
// hard filter even here.
type fuzzyTokenStrategy struct {
	store catalog.Store
	cfg   config.SearchConfig
}

const fuzzyExtraTokens = 6

func (s *fuzzyTokenStrategy) Name() string { return StrategyFuzzyToken }

func (s *fuzzyTokenStrategy) Attempt(ctx context.Context, q *Query) (*models.StrategyResult, error) {
	if q.Normalized == "" {
		return declined()
	}

	pattern := s.buildPattern(q)
	criteria := &models.SearchCriteria{
		Or: []models.PatternClause{
			{Field: "name", Pattern: pattern},
			{Field: "description", Pattern: pattern},
		},
		Storage: q.Info.Storage,
	}

	products, err := s.store.FindByCriteria(ctx, criteria, s.cfg.FuzzyLimit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return declined()
	}

	scored := Score(products, q.Normalized, q.Info)
	return &models.StrategyResult{
		Success:       true,
		Products:      capResults(scored, s.cfg.ResultCap),
		Strategy:      s.Name(),
		ExtractedInfo: q.Info,
	}, nil
}

func (s *fuzzyTokenStrategy) buildPattern(q *Query) string {
	var modelTokens []string
	if q.Info.Model != "" {
		modelTokens = strings.Fields(strings.ToLower(q.Info.Model))
	}
	isModelToken := make(map[string]bool, len(modelTokens))
	for _, t := range modelTokens {
		isModelToken[t] = true
	}

	var other []string
	for _, t := range strings.Fields(q.Normalized) {
		if len(t) <= 1 || isModelToken[t] {
			continue
		}
		other = append(other, t)
		if len(other) == fuzzyExtraTokens {
			break
		}
	}

	var parts []string
	for _, t := range append(modelTokens, other...) {
		parts = append(parts, escapeFragment(t))
	}
	if len(parts) == 0 {
		return escapeFragment(q.Normalized)
	}
	return strings.Join(parts, `.*`)
}

// fallbackPopularStrategy always executes and always reports Success=false:
// its products are suggestions, never an answer to the literal question.
type fallbackPopularStrategy struct {
	store catalog.Store
	cfg   config.SearchConfig
}

func (s *fallbackPopularStrategy) Name() string { return StrategyFallbackPopular }

func (s *fallbackPopularStrategy) Attempt(ctx context.Context, q *Query) (*models.StrategyResult, error) {
	products, err := s.store.Popular(ctx, s.cfg.ResultCap)
	if err != nil {
		return nil, err
	}

	suggestions := make([]models.ScoredProduct, 0, len(products))
	for _, p := range products {
		suggestions = append(suggestions, models.ScoredProduct{CatalogProduct: p})
	}
	return &models.StrategyResult{
		Success:  false,
		Products: suggestions,
		Strategy: s.Name(),
		Message:  fallbackMessage,
	}, nil
}

func capResults(products []models.ScoredProduct, n int) []models.ScoredProduct {
	if len(products) > n {
		return products[:n]
	}
	return products
}
