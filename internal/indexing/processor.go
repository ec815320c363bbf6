package indexing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/cache"
	"github.com/quang1403/ecommerce-backend/internal/clickhouse"
	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/elasticsearch"
	"github.com/quang1403/ecommerce-backend/internal/models"
	"github.com/quang1403/ecommerce-backend/internal/observability"
	"github.com/quang1403/ecommerce-backend/internal/resilience"
)

// StreamProcessor applies catalog change events: it mirrors products into
// Elasticsearch via a bulk buffer, records the change in ClickHouse, and
// invalidates cached search results that may now be wrong.
type StreamProcessor struct {
	esClient *elasticsearch.Client
	chClient *clickhouse.Client
	cache    *cache.RedisCache
	esCfg    config.ElasticsearchConfig
	retryCfg config.RetryConfig
	logger   *zap.Logger

	mu     sync.Mutex
	buffer []models.IndexAction
	ticker *time.Ticker
	done   chan struct{}
}

func NewStreamProcessor(
	esClient *elasticsearch.Client,
	chClient *clickhouse.Client,
	cache *cache.RedisCache,
	esCfg config.ElasticsearchConfig,
	retryCfg config.RetryConfig,
	logger *zap.Logger,
) *StreamProcessor {
	sp := &StreamProcessor{
		esClient: esClient,
		chClient: chClient,
		cache:    cache,
		esCfg:    esCfg,
		retryCfg: retryCfg,
		logger:   logger,
		buffer:   make([]models.IndexAction, 0, esCfg.BulkSize),
		ticker:   time.NewTicker(esCfg.BulkFlushInterval),
		done:     make(chan struct{}),
	}

	go sp.flushLoop()

	return sp
}

func (sp *StreamProcessor) HandleEvent(ctx context.Context, event *models.ChangeEvent) error {
	action, err := sp.transformEvent(event)
	if err != nil {
		return fmt.Errorf("transforming event: %w", err)
	}

	sp.mu.Lock()
	sp.buffer = append(sp.buffer, *action)
	shouldFlush := len(sp.buffer) >= sp.esCfg.BulkSize
	sp.mu.Unlock()

	if shouldFlush {
		if err := sp.flush(ctx); err != nil {
			sp.logger.Error("flush on buffer full failed", zap.Error(err))
		}
	}

	// Changelog write is best-effort; analytics must not block indexing.
	if sp.chClient != nil {
		go func() {
			chCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sp.chClient.InsertProductEvent(chCtx, event); err != nil {
				sp.logger.Warn("clickhouse event insert failed",
					zap.String("product_id", event.ProductID),
					zap.Error(err),
				)
			}
		}()
	}

	if sp.cache != nil {
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := sp.cache.InvalidateSearchResults(cacheCtx); err != nil {
				sp.logger.Warn("cache invalidation failed",
					zap.String("product_id", event.ProductID),
					zap.Error(err),
				)
			}
		}()
	}

	return nil
}

func (sp *StreamProcessor) transformEvent(event *models.ChangeEvent) (*models.IndexAction, error) {
	action := &models.IndexAction{
		ID:        event.ProductID,
		Timestamp: event.Timestamp,
	}

	switch event.Type {
	case "CREATE", "UPDATE":
		action.Action = "index"
		action.Body = extractSearchFields(event.Product)
	case "DELETE":
		action.Action = "delete"
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}

	action.Index = sp.esClient.ResolveIndex()
	return action, nil
}

// extractSearchFields keeps only the fields the mirror needs for matching
// and ranking, dropping internal bookkeeping the change event may carry.
func extractSearchFields(product map[string]any) map[string]any {
	fields := map[string]any{
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}

	searchableFields := []string{
		"name", "description", "brand", "price", "stock",
		"rating", "sold", "storage", "ram", "chipset", "created_at",
	}

	for _, field := range searchableFields {
		if v, ok := product[field]; ok {
			fields[field] = v
		}
	}

	return fields
}

func (sp *StreamProcessor) flushLoop() {
	for {
		select {
		case <-sp.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sp.flush(ctx); err != nil {
				sp.logger.Error("periodic flush failed", zap.Error(err))
			}
			cancel()
		case <-sp.done:
			return
		}
	}
}

func (sp *StreamProcessor) flush(ctx context.Context) error {
	sp.mu.Lock()
	if len(sp.buffer) == 0 {
		sp.mu.Unlock()
		return nil
	}
	batch := make([]models.IndexAction, len(sp.buffer))
	copy(batch, sp.buffer)
	sp.buffer = sp.buffer[:0]
	sp.mu.Unlock()

	start := time.Now()
	err := resilience.Retry(ctx, sp.retryCfg, func() error {
		return sp.esClient.BulkIndex(ctx, batch)
	})
	if err != nil {
		// Put failed items back so the next flush retries them.
		sp.mu.Lock()
		sp.buffer = append(batch, sp.buffer...)
		sp.mu.Unlock()

		observability.IndexingEventsTotal.WithLabelValues("bulk", "error").Inc()
		return fmt.Errorf("bulk index flush: %w", err)
	}

	observability.IndexingEventsTotal.WithLabelValues("bulk", "success").Add(float64(len(batch)))
	sp.logger.Info("bulk flush completed",
		zap.Int("count", len(batch)),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}

func (sp *StreamProcessor) Stop() error {
	sp.ticker.Stop()
	close(sp.done)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return sp.flush(ctx)
}
