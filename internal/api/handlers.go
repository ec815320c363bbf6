package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/cache"
	"github.com/quang1403/ecommerce-backend/internal/catalog"
	"github.com/quang1403/ecommerce-backend/internal/clickhouse"
	"github.com/quang1403/ecommerce-backend/internal/firestore"
	"github.com/quang1403/ecommerce-backend/internal/kafka"
	"github.com/quang1403/ecommerce-backend/internal/models"
	"github.com/quang1403/ecommerce-backend/internal/search"
)

const maxQueryLen = 200

// Handler serves the search API. Everything except the engine and the store
// is optional: a nil cache, producer, or firestore client just disables that
// feature instead of failing requests.
type Handler struct {
	engine    *search.Engine
	store     catalog.Store
	cache     *cache.RedisCache
	producer  *kafka.Producer
	fs        *firestore.Client
	analytics *clickhouse.Client
	logger    *zap.Logger
}

func NewHandler(
	engine *search.Engine,
	store catalog.Store,
	cache *cache.RedisCache,
	producer *kafka.Producer,
	fs *firestore.Client,
	analytics *clickhouse.Client,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		engine:    engine,
		store:     store,
		cache:     cache,
		producer:  producer,
		fs:        fs,
		analytics: analytics,
		logger:    logger,
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" && r.Method == http.MethodPost {
		var body struct {
			Query string `json:"q"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			query = body.Query
		}
	}
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}
	if len(query) > maxQueryLen {
		query = query[:maxQueryLen]
	}

	normalized := search.Normalize(query)
	forceFresh := r.URL.Query().Get("force_fresh") == "true"
	hydrate := r.URL.Query().Get("hydrate") == "true"
	debug := r.URL.Query().Get("debug") == "true"

	if h.cache != nil && !forceFresh {
		cached, err := h.cache.GetSearchResult(ctx, normalized)
		if err != nil {
			h.logger.Warn("search cache read error", zap.Error(err))
		}
		if cached != nil {
			cached.CacheHit = true
			cached.RequestID = requestID
			h.respond(w, r, query, hydrate, cached)
			return
		}
	}

	result := h.engine.Search(ctx, query)
	result.RequestID = requestID

	if debug {
		h.logger.Info("search debug",
			zap.String("query", query),
			zap.String("normalized", normalized),
			zap.String("strategy", result.SearchInfo.Strategy),
			zap.Any("extracted", result.SearchInfo.ExtractedInfo),
			zap.Strings("features", result.SearchInfo.Features),
			zap.Int("results", len(result.Products)),
			zap.Int64("took_ms", result.TookMs),
		)
	}

	// Total failure: the live path produced nothing at all. A stale cached
	// answer beats an error envelope.
	if !result.Success && result.Error != "" && h.cache != nil {
		stale, err := h.cache.GetStaleResult(ctx, normalized)
		if err != nil {
			h.logger.Warn("stale cache read error", zap.Error(err))
		}
		if stale != nil {
			stale.Stale = true
			stale.CacheHit = true
			stale.RequestID = requestID
			h.respond(w, r, query, hydrate, stale)
			return
		}
	}

	if result.Success && h.cache != nil {
		if err := h.cache.SetSearchResult(ctx, normalized, result); err != nil {
			h.logger.Warn("search cache write error", zap.Error(err))
		}
	}

	h.respond(w, r, query, hydrate, result)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, query string, hydrate bool, result *models.SearchResult) {
	if hydrate && h.fs != nil && len(result.Products) > 0 {
		result.Products = h.fs.HydrateProducts(r.Context(), result.Products)
	}

	h.publishEvent(query, result)
	h.writeJSON(w, http.StatusOK, result)
}

// publishEvent emits the search event to Kafka for downstream consumers and
// mirrors it into the analytics store. Both run detached from the request so
// a slow broker never adds latency.
func (h *Handler) publishEvent(query string, result *models.SearchResult) {
	if h.producer == nil && h.analytics == nil {
		return
	}
	event := &models.SearchEvent{
		Query:       query,
		Strategy:    result.SearchInfo.Strategy,
		Success:     result.Success,
		ResultCount: len(result.Products),
		DurationMs:  result.TookMs,
		RequestID:   result.RequestID,
		Timestamp:   time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if h.producer != nil {
			if err := h.producer.PublishSearchEvent(ctx, event); err != nil {
				h.logger.Warn("publishing search event failed", zap.Error(err))
			}
		}
		if h.analytics != nil {
			if err := h.analytics.WriteSearchEvent(ctx, event); err != nil {
				h.logger.Warn("recording search event failed", zap.Error(err))
			}
		}
	}()
}

func (h *Handler) Popular(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		products, err := h.cache.GetPopular(ctx)
		if err != nil {
			h.logger.Warn("popular cache read error", zap.Error(err))
		}
		if products != nil {
			h.writeJSON(w, http.StatusOK, map[string]any{
				"products": products,
				"source":   "cache",
			})
			return
		}
	}

	found, err := h.store.Popular(ctx, 10)
	if err != nil {
		h.logger.Error("popular query failed", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "catalog_error", "Catalog temporarily unavailable")
		return
	}

	products := make([]models.ScoredProduct, 0, len(found))
	for _, p := range found {
		products = append(products, models.ScoredProduct{CatalogProduct: p})
	}

	if h.cache != nil {
		if err := h.cache.SetPopular(ctx, products); err != nil {
			h.logger.Warn("popular cache write error", zap.Error(err))
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"source":   "catalog",
	})
}

// ProductDetails serves the rich product document for one catalog ID.
func (h *Handler) ProductDetails(w http.ResponseWriter, r *http.Request) {
	if h.fs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "details_unavailable", "Product details are temporarily unavailable")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing_id", "Product id is required")
		return
	}

	details, err := h.fs.GetDocument(r.Context(), id)
	if err != nil {
		h.logger.Warn("product details lookup failed", zap.String("id", id), zap.Error(err))
		h.writeError(w, http.StatusNotFound, "not_found", "Product details not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"details": details,
	})
}

// StrategyStats reports which cascade strategies answered searches over the
// requested window, from the analytics store.
func (h *Handler) StrategyStats(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		h.writeError(w, http.StatusServiceUnavailable, "analytics_unavailable", "Analytics are temporarily unavailable")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 24*30 {
			h.writeError(w, http.StatusBadRequest, "invalid_hours", "Parameter 'hours' must be a positive integer up to 720")
			return
		}
		hours = parsed
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	stats, err := h.analytics.TopStrategies(r.Context(), since)
	if err != nil {
		h.logger.Error("strategy stats query failed", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "analytics_error", "Analytics temporarily unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"since":      since,
		"strategies": stats,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
