package search

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/models"
)

// stubStore lets each test script the catalog per method and records call
// counts so cascade order and short-circuiting can be asserted.
type stubStore struct {
	criteriaFn func(criteria *models.SearchCriteria) ([]models.CatalogProduct, error)
	brandFn    func(brand string) ([]models.CatalogProduct, error)
	filtersFn  func(filters *models.FeatureFilters) ([]models.CatalogProduct, error)
	popularFn  func() ([]models.CatalogProduct, error)

	criteriaCalls int
	brandCalls    int
	filtersCalls  int
	popularCalls  int
	popularLimit  int

	lastCriteria *models.SearchCriteria
}

func (s *stubStore) FindByCriteria(ctx context.Context, criteria *models.SearchCriteria, limit int) ([]models.CatalogProduct, error) {
	s.criteriaCalls++
	s.lastCriteria = criteria
	if s.criteriaFn == nil {
		return nil, nil
	}
	return s.criteriaFn(criteria)
}

func (s *stubStore) FindByBrand(ctx context.Context, brand string, limit int) ([]models.CatalogProduct, error) {
	s.brandCalls++
	if s.brandFn == nil {
		return nil, nil
	}
	return s.brandFn(brand)
}

func (s *stubStore) FindByFilters(ctx context.Context, filters *models.FeatureFilters, limit int) ([]models.CatalogProduct, error) {
	s.filtersCalls++
	if s.filtersFn == nil {
		return nil, nil
	}
	return s.filtersFn(filters)
}

func (s *stubStore) Popular(ctx context.Context, limit int) ([]models.CatalogProduct, error) {
	s.popularCalls++
	s.popularLimit = limit
	if s.popularFn == nil {
		return nil, nil
	}
	return s.popularFn()
}

func newTestEngine(store *stubStore) *Engine {
	return New(store, config.DefaultConfig().Search, zap.NewNop(), nil)
}

func product(id, name string) models.CatalogProduct {
	return models.CatalogProduct{ID: id, Name: name, Stock: 3, Rating: 4.2, Sold: 200}
}

func TestSearch_ExactModelShortCircuits(t *testing.T) {
	store := &stubStore{
		criteriaFn: func(criteria *models.SearchCriteria) ([]models.CatalogProduct, error) {
			return []models.CatalogProduct{product("p-1", "iPhone 15 128GB")}, nil
		},
	}
	engine := newTestEngine(store)

	result := engine.Search(context.Background(), "iphone 15")

	if !result.Success {
		t.Fatal("expected success")
	}
	if result.SearchInfo.Strategy != StrategyExactModel {
		t.Errorf("expected strategy %q, got %q", StrategyExactModel, result.SearchInfo.Strategy)
	}
	if len(result.Products) != 1 {
		t.Errorf("expected 1 product, got %d", len(result.Products))
	}
	if result.SearchInfo.ResultCount != 1 {
		t.Errorf("expected result count 1, got %d", result.SearchInfo.ResultCount)
	}
	if store.criteriaCalls != 1 {
		t.Errorf("expected 1 criteria query, got %d", store.criteriaCalls)
	}
	if store.popularCalls != 0 {
		t.Errorf("later strategies must not run after a hit, popular called %d times", store.popularCalls)
	}
}

func TestSearch_StrategyErrorCascadesToNext(t *testing.T) {
	store := &stubStore{
		criteriaFn: func(criteria *models.SearchCriteria) ([]models.CatalogProduct, error) {
			return nil, errors.New("connection reset")
		},
		brandFn: func(brand string) ([]models.CatalogProduct, error) {
			if brand != "Apple" {
				t.Errorf("expected brand Apple, got %q", brand)
			}
			return []models.CatalogProduct{product("p-1", "iPhone 15")}, nil
		},
	}
	engine := newTestEngine(store)

	result := engine.Search(context.Background(), "iphone 15")

	if !result.Success {
		t.Fatal("expected success from the next strategy")
	}
	if result.SearchInfo.Strategy != StrategyBrandBased {
		t.Errorf("expected strategy %q, got %q", StrategyBrandBased, result.SearchInfo.Strategy)
	}
	if result.Error != "" {
		t.Errorf("recovered strategy error must not surface, got %q", result.Error)
	}
}

func TestSearch_FeatureBased(t *testing.T) {
	store := &stubStore{
		filtersFn: func(filters *models.FeatureFilters) ([]models.CatalogProduct, error) {
			if filters.MinRAM == 0 && filters.ChipsetPattern == "" {
				t.Error("expected gaming filters")
			}
			return []models.CatalogProduct{product("p-1", "ROG Phone 8")}, nil
		},
	}
	engine := newTestEngine(store)

	result := engine.Search(context.Background(), "dien thoai choi game")

	if !result.Success {
		t.Fatal("expected success")
	}
	if result.SearchInfo.Strategy != StrategyFeatureBased {
		t.Errorf("expected strategy %q, got %q", StrategyFeatureBased, result.SearchInfo.Strategy)
	}
	if result.Products[0].Score != 0 {
		t.Errorf("feature results are unscored, got score %.2f", result.Products[0].Score)
	}
	if len(result.SearchInfo.Features) == 0 {
		t.Error("expected detected features in search info")
	}
}

func TestSearch_FuzzyKeepsStorageFilter(t *testing.T) {
	store := &stubStore{
		criteriaFn: func(criteria *models.SearchCriteria) ([]models.CatalogProduct, error) {
			return []models.CatalogProduct{product("p-1", "Dien thoai xin 256GB")}, nil
		},
	}
	engine := newTestEngine(store)

	result := engine.Search(context.Background(), "dien thoai xin 256gb")

	if !result.Success {
		t.Fatal("expected success")
	}
	if result.SearchInfo.Strategy != StrategyFuzzyToken {
		t.Errorf("expected strategy %q, got %q", StrategyFuzzyToken, result.SearchInfo.Strategy)
	}
	if store.lastCriteria == nil || store.lastCriteria.Storage != 256 {
		t.Errorf("fuzzy query must carry the storage constraint, got %+v", store.lastCriteria)
	}
}

func TestSearch_FallbackAlwaysReportsNoMatch(t *testing.T) {
	store := &stubStore{
		popularFn: func() ([]models.CatalogProduct, error) {
			return []models.CatalogProduct{
				product("p-1", "iPhone 15 128GB"),
				product("p-2", "Galaxy S24"),
			}, nil
		},
	}
	engine := newTestEngine(store)

	result := engine.Search(context.Background(), "iphone 99")

	if result.Success {
		t.Error("fallback suggestions must keep success false")
	}
	if len(result.Products) != 2 {
		t.Errorf("expected 2 suggestions, got %d", len(result.Products))
	}
	if result.Message == "" {
		t.Error("expected fallback message")
	}
	if result.Error != "" {
		t.Errorf("fallback is not an error, got %q", result.Error)
	}
	if result.SearchInfo.Strategy != StrategyFallbackPopular {
		t.Errorf("expected strategy %q, got %q", StrategyFallbackPopular, result.SearchInfo.Strategy)
	}
	if store.popularLimit != config.DefaultConfig().Search.ResultCap {
		t.Errorf("expected popular limit %d, got %d", config.DefaultConfig().Search.ResultCap, store.popularLimit)
	}
}

func TestSearch_TotalFailure(t *testing.T) {
	storeErr := errors.New("catalog down")
	store := &stubStore{
		criteriaFn: func(criteria *models.SearchCriteria) ([]models.CatalogProduct, error) { return nil, storeErr },
		brandFn:    func(brand string) ([]models.CatalogProduct, error) { return nil, storeErr },
		filtersFn:  func(filters *models.FeatureFilters) ([]models.CatalogProduct, error) { return nil, storeErr },
		popularFn:  func() ([]models.CatalogProduct, error) { return nil, storeErr },
	}
	engine := newTestEngine(store)

	result := engine.Search(context.Background(), "iphone 15")

	if result.Success {
		t.Error("expected success false")
	}
	if result.Products == nil || len(result.Products) != 0 {
		t.Errorf("expected empty non-nil product list, got %v", result.Products)
	}
	if result.Error == "" {
		t.Error("total failure must carry an error message")
	}
	if result.Message != "" {
		t.Errorf("total failure carries no suggestion message, got %q", result.Message)
	}
	if result.SearchInfo.Strategy != StrategyNone {
		t.Errorf("expected strategy %q, got %q", StrategyNone, result.SearchInfo.Strategy)
	}
}

func TestSearch_PanicRecovered(t *testing.T) {
	store := &stubStore{
		criteriaFn: func(criteria *models.SearchCriteria) ([]models.CatalogProduct, error) {
			panic("boom")
		},
		popularFn: func() ([]models.CatalogProduct, error) {
			return []models.CatalogProduct{product("p-1", "iPhone 15")}, nil
		},
	}
	engine := newTestEngine(store)

	result := engine.Search(context.Background(), "iphone 15")

	if result.Success {
		t.Error("expected success false after panicking strategies")
	}
	if result.SearchInfo.Strategy != StrategyFallbackPopular {
		t.Errorf("expected fallback suggestions, got strategy %q", result.SearchInfo.Strategy)
	}
	if len(result.Products) != 1 {
		t.Errorf("expected 1 suggestion, got %d", len(result.Products))
	}
}

func TestSearch_BrandJoinRetryFiltersStorage(t *testing.T) {
	store := &stubStore{
		brandFn: func(brand string) ([]models.CatalogProduct, error) {
			return []models.CatalogProduct{
				{ID: "p-128", Name: "iPhone 15 128GB", Storage: 128},
				{ID: "p-256", Name: "iPhone 15 256GB", Storage: 256},
				{ID: "p-other", Name: "iPad Air", Storage: 256},
			}, nil
		},
	}
	engine := newTestEngine(store)

	result := engine.Search(context.Background(), "iphone 15 256gb")

	if !result.Success {
		t.Fatal("expected success via brand-join retry")
	}
	if result.SearchInfo.Strategy != StrategyExactModel {
		t.Errorf("expected strategy %q, got %q", StrategyExactModel, result.SearchInfo.Strategy)
	}
	if len(result.Products) != 1 || result.Products[0].ID != "p-256" {
		t.Errorf("expected only the matching-storage model, got %v", result.Products)
	}
}

func TestSearch_ResultsCapped(t *testing.T) {
	cfg := config.DefaultConfig().Search
	many := make([]models.CatalogProduct, cfg.ExactLimit)
	for i := range many {
		many[i] = product(string(rune('a'+i)), "iPhone 15")
	}
	store := &stubStore{
		criteriaFn: func(criteria *models.SearchCriteria) ([]models.CatalogProduct, error) {
			return many, nil
		},
	}
	engine := newTestEngine(store)

	result := engine.Search(context.Background(), "iphone 15")

	if len(result.Products) != cfg.ResultCap {
		t.Errorf("expected results capped at %d, got %d", cfg.ResultCap, len(result.Products))
	}
}
