package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/models"
	"github.com/quang1403/ecommerce-backend/internal/search"
)

type fakeStore struct {
	products []models.CatalogProduct
	popular  []models.CatalogProduct
}

func (f *fakeStore) FindByCriteria(ctx context.Context, criteria *models.SearchCriteria, limit int) ([]models.CatalogProduct, error) {
	return f.products, nil
}

func (f *fakeStore) FindByBrand(ctx context.Context, brand string, limit int) ([]models.CatalogProduct, error) {
	return f.products, nil
}

func (f *fakeStore) FindByFilters(ctx context.Context, filters *models.FeatureFilters, limit int) ([]models.CatalogProduct, error) {
	return f.products, nil
}

func (f *fakeStore) Popular(ctx context.Context, limit int) ([]models.CatalogProduct, error) {
	return f.popular, nil
}

func newTestHandler(store *fakeStore) *Handler {
	logger := zap.NewNop()
	cfg := config.DefaultConfig().Search
	engine := search.New(store, cfg, logger, nil)
	return NewHandler(engine, store, nil, nil, nil, nil, logger)
}

func catalogProduct(name string, brand string) models.CatalogProduct {
	return models.CatalogProduct{
		ID:        "p-" + name,
		Name:      name,
		Price:     10_000_000,
		Stock:     5,
		Rating:    4.5,
		Sold:      100,
		Brand:     &models.Brand{ID: "b-1", Name: brand},
		CreatedAt: time.Now(),
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rr := httptest.NewRecorder()

	h.Search(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing query, got %d", rr.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["code"] != "missing_query" {
		t.Errorf("expected code 'missing_query', got %q", body["code"])
	}
}

func TestSearch_SuccessEnvelope(t *testing.T) {
	store := &fakeStore{
		products: []models.CatalogProduct{
			catalogProduct("iPhone 15 Pro Max 256GB", "Apple"),
		},
	}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=iphone+15", nil)
	rr := httptest.NewRecorder()

	h.Search(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var result models.SearchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !result.Success {
		t.Error("expected success true")
	}
	if len(result.Products) == 0 {
		t.Error("expected products in response")
	}
	if result.SearchInfo.OriginalQuery != "iphone 15" {
		t.Errorf("expected original query 'iphone 15', got %q", result.SearchInfo.OriginalQuery)
	}
	if result.SearchInfo.Strategy == "" {
		t.Error("expected strategy in search info")
	}
}

func TestSearch_FallbackSuggestions(t *testing.T) {
	store := &fakeStore{
		popular: []models.CatalogProduct{
			catalogProduct("iPhone 15 128GB", "Apple"),
			catalogProduct("Galaxy S24 Ultra", "Samsung"),
		},
	}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=xyzzy", nil)
	rr := httptest.NewRecorder()

	h.Search(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var result models.SearchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if result.Success {
		t.Error("fallback suggestions must report success false")
	}
	if len(result.Products) != 2 {
		t.Errorf("expected 2 suggested products, got %d", len(result.Products))
	}
	if result.Message == "" {
		t.Error("expected fallback message")
	}
	if result.Error != "" {
		t.Errorf("fallback must not carry an error, got %q", result.Error)
	}
}

func TestSearch_RequestIDPropagated(t *testing.T) {
	store := &fakeStore{
		products: []models.CatalogProduct{catalogProduct("iPhone 15", "Apple")},
	}
	h := newTestHandler(store)

	handler := RequestIDMiddleware(http.HandlerFunc(h.Search))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=iphone", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	var result models.SearchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if result.RequestID != "req-42" {
		t.Errorf("expected request id 'req-42', got %q", result.RequestID)
	}
}

func TestSearch_ExtractionInEnvelope(t *testing.T) {
	store := &fakeStore{
		products: []models.CatalogProduct{catalogProduct("iPhone 15", "Apple")},
	}
	h := newTestHandler(store)

	// The envelope carries extraction detail with or without debug=true;
	// debug only switches on verbose logging.
	for _, target := range []string{"/api/v1/search?q=iphone+15", "/api/v1/search?q=iphone+15&debug=true"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rr := httptest.NewRecorder()
		h.Search(rr, req)

		var result models.SearchResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if result.SearchInfo.ExtractedInfo == nil {
			t.Errorf("%s: expected extracted info in envelope", target)
		}
		if result.SearchInfo.ExtractedInfo != nil && result.SearchInfo.ExtractedInfo.Brand != "Apple" {
			t.Errorf("%s: expected extracted brand Apple, got %q", target, result.SearchInfo.ExtractedInfo.Brand)
		}
	}
}

func TestSearch_PostBody(t *testing.T) {
	store := &fakeStore{
		products: []models.CatalogProduct{catalogProduct("iPhone 15", "Apple")},
	}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"q":"iphone 15"}`))
	rr := httptest.NewRecorder()

	h.Search(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var result models.SearchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if result.SearchInfo.OriginalQuery != "iphone 15" {
		t.Errorf("expected query from body, got %q", result.SearchInfo.OriginalQuery)
	}
}

func TestPopular(t *testing.T) {
	store := &fakeStore{
		popular: []models.CatalogProduct{
			catalogProduct("iPhone 15 128GB", "Apple"),
		},
	}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/popular", nil)
	rr := httptest.NewRecorder()

	h.Popular(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		Products []models.ScoredProduct `json:"products"`
		Source   string                 `json:"source"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body.Products) != 1 {
		t.Errorf("expected 1 product, got %d", len(body.Products))
	}
	if body.Source != "catalog" {
		t.Errorf("expected source 'catalog', got %q", body.Source)
	}
}

func TestProductDetails_Unavailable(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/p-1/details", nil)
	rr := httptest.NewRecorder()

	h.ProductDetails(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a document store, got %d", rr.Code)
	}
}

func TestStrategyStats_Unavailable(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/strategies", nil)
	rr := httptest.NewRecorder()

	h.StrategyStats(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without analytics, got %d", rr.Code)
	}
}

func TestSearch_QueryTruncated(t *testing.T) {
	store := &fakeStore{
		popular: []models.CatalogProduct{catalogProduct("iPhone 15", "Apple")},
	}
	h := newTestHandler(store)

	long := make([]byte, 0, 2*maxQueryLen)
	for i := 0; i < 2*maxQueryLen; i++ {
		long = append(long, 'a')
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q="+string(long), nil)
	rr := httptest.NewRecorder()

	h.Search(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var result models.SearchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(result.SearchInfo.OriginalQuery) != maxQueryLen {
		t.Errorf("expected query truncated to %d chars, got %d", maxQueryLen, len(result.SearchInfo.OriginalQuery))
	}
}
