package search

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/catalog"
	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/models"
	"github.com/quang1403/ecommerce-backend/internal/observability"
)

// Engine runs the five-strategy cascade over the catalog. It is stateless and
// read-only: concurrent Search calls share nothing but the store, so no
// locking is needed.
type Engine struct {
	store      catalog.Store
	strategies []Strategy
	cfg        config.SearchConfig
	logger     *zap.Logger
	slowQuery  *observability.SlowQueryDetector
}

func New(store catalog.Store, cfg config.SearchConfig, logger *zap.Logger, slowQuery *observability.SlowQueryDetector) *Engine {
	return &Engine{
		store: store,
		strategies: []Strategy{
			&exactModelStrategy{store: store, cfg: cfg},
			&brandBasedStrategy{store: store, cfg: cfg},
			&featureBasedStrategy{store: store, cfg: cfg},
			&fuzzyTokenStrategy{store: store, cfg: cfg},
			&fallbackPopularStrategy{store: store, cfg: cfg},
		},
		cfg:       cfg,
		logger:    logger,
		slowQuery: slowQuery,
	}
}

// Search resolves a raw user query to a ranked product list. Strategies run
// strictly in order and the first non-empty success short-circuits the
// cascade. Failures inside a strategy are recovered here and turn into that
// strategy declining; the only total-failure path is every strategy,
// fallback included, erroring out — surfaced through the Error field, never
// as a panic or a Go error to the caller.
func (e *Engine) Search(ctx context.Context, rawQuery string) *models.SearchResult {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "search.cascade",
		attribute.String("query", rawQuery),
	)
	defer span.End()

	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	normalized := Normalize(rawQuery)
	q := &Query{
		Raw:        rawQuery,
		Normalized: normalized,
		Info:       Extract(normalized),
		Features:   ExtractFeatures(normalized),
	}

	e.logger.Debug("query analyzed",
		zap.String("normalized", normalized),
		zap.String("brand", q.Info.Brand),
		zap.String("model", q.Info.Model),
		zap.String("variant", q.Info.Variant),
		zap.Int("storage", q.Info.Storage),
		zap.Strings("features", q.Features),
	)

	var fallback *models.StrategyResult
	var lastErr error

	for _, strategy := range e.strategies {
		res, err := e.attempt(ctx, strategy, q)
		if err != nil {
			lastErr = err
			e.logger.Warn("strategy attempt failed",
				zap.String("strategy", strategy.Name()),
				zap.Error(err),
			)
			observability.StrategyAttemptsTotal.WithLabelValues(strategy.Name(), "error").Inc()
			continue
		}

		if res.Success && len(res.Products) > 0 {
			observability.StrategyAttemptsTotal.WithLabelValues(strategy.Name(), "hit").Inc()
			return e.finish(ctx, start, q, e.successResult(q, res))
		}

		// The popular fallback deliberately reports Success=false while
		// still carrying suggestions; hold on to it instead of discarding.
		if strategy.Name() == StrategyFallbackPopular {
			fallback = res
		}
		observability.StrategyAttemptsTotal.WithLabelValues(strategy.Name(), "declined").Inc()
	}

	if fallback != nil {
		observability.FallbackCounter.WithLabelValues("no_match").Inc()
		return e.finish(ctx, start, q, &models.SearchResult{
			Success:  false,
			Products: fallback.Products,
			Message:  fallback.Message,
			SearchInfo: models.SearchInfo{
				OriginalQuery: q.Raw,
				Strategy:      StrategyFallbackPopular,
				ExtractedInfo: q.Info,
				Features:      q.Features,
				ResultCount:   len(fallback.Products),
			},
		})
	}

	// Even the fallback could not read the catalog: the search subsystem is
	// degraded, which callers must distinguish from "no match".
	observability.FallbackCounter.WithLabelValues("total_failure").Inc()
	errMsg := "catalog unavailable"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	return e.finish(ctx, start, q, &models.SearchResult{
		Success:  false,
		Products: []models.ScoredProduct{},
		Error:    errMsg,
		SearchInfo: models.SearchInfo{
			OriginalQuery: q.Raw,
			Strategy:      StrategyNone,
			ExtractedInfo: q.Info,
			Features:      q.Features,
		},
	})
}

// attempt shields the cascade from a misbehaving strategy: both returned
// errors and panics become "this strategy declined".
func (e *Engine) attempt(ctx context.Context, strategy Strategy, q *Query) (res *models.StrategyResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)
		}
	}()
	return strategy.Attempt(ctx, q)
}

func (e *Engine) successResult(q *Query, res *models.StrategyResult) *models.SearchResult {
	return &models.SearchResult{
		Success:  true,
		Products: res.Products,
		SearchInfo: models.SearchInfo{
			OriginalQuery: q.Raw,
			Strategy:      res.Strategy,
			ExtractedInfo: res.ExtractedInfo,
			Features:      res.Features,
			ResultCount:   len(res.Products),
		},
	}
}

func (e *Engine) finish(ctx context.Context, start time.Time, q *Query, result *models.SearchResult) *models.SearchResult {
	duration := time.Since(start)
	result.TookMs = duration.Milliseconds()

	status := "no_match"
	if result.Success {
		status = "success"
	} else if result.Error != "" {
		status = "error"
	}
	observability.SearchRequestsTotal.WithLabelValues(result.SearchInfo.Strategy, status).Inc()
	observability.SearchRequestDuration.WithLabelValues(result.SearchInfo.Strategy, status).Observe(duration.Seconds())

	if e.slowQuery != nil {
		e.slowQuery.Intercept(ctx, q.Raw, result.SearchInfo.Strategy, duration,
			int64(len(result.Products)), result.Success)
	}
	return result
}
