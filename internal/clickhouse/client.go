package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/models"
	"github.com/quang1403/ecommerce-backend/internal/observability"
)

// Client writes search analytics to ClickHouse: per-query performance rows
// from the slow-query detector, search events from the Kafka consumer, and a
// changelog of catalog mutations seen by the indexing pipeline.
type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:   conn,
		logger: logger,
	}, nil
}

func (c *Client) WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error {
	query := `
		INSERT INTO query_performance (
			event_type, query_hash, strategy, duration_ms,
			total_hits, success, timestamp, trace_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	return c.conn.Exec(ctx, query,
		event.EventType,
		event.QueryHash,
		event.Strategy,
		event.DurationMs,
		event.TotalHits,
		event.Success,
		event.Timestamp,
		event.TraceID,
	)
}

func (c *Client) WriteSearchEvent(ctx context.Context, event *models.SearchEvent) error {
	start := time.Now()
	query := `
		INSERT INTO search_events (
			query, strategy, success, result_count, duration_ms, request_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	err := c.conn.Exec(ctx, query,
		event.Query,
		event.Strategy,
		event.Success,
		event.ResultCount,
		event.DurationMs,
		event.RequestID,
		event.Timestamp,
	)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.CHQueryDuration.WithLabelValues("search_event", status).Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) InsertProductEvent(ctx context.Context, event *models.ChangeEvent) error {
	query := `
		INSERT INTO product_changelog (
			product_id, operation, timestamp, version
		) VALUES (?, ?, ?, ?)
	`
	return c.conn.Exec(ctx, query,
		event.ProductID,
		event.Type,
		event.Timestamp,
		event.Version,
	)
}

// TopStrategies reports strategy hit counts over the trailing window, for
// the internal analytics endpoint.
func (c *Client) TopStrategies(ctx context.Context, since time.Time) (map[string]int64, error) {
	ctx, span := observability.StartSpan(ctx, "ch.top_strategies")
	defer span.End()

	start := time.Now()
	query := `
		SELECT strategy, count() AS cnt
		FROM search_events
		WHERE timestamp >= ?
		GROUP BY strategy
		ORDER BY cnt DESC
	`
	rows, err := c.conn.Query(ctx, query, since)
	if err != nil {
		observability.CHQueryDuration.WithLabelValues("top_strategies", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("ch strategy aggregation: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var strategy string
		var count uint64
		if err := rows.Scan(&strategy, &count); err != nil {
			return nil, fmt.Errorf("scanning strategy row: %w", err)
		}
		counts[strategy] = int64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating strategy rows: %w", err)
	}

	observability.CHQueryDuration.WithLabelValues("top_strategies", "success").Observe(time.Since(start).Seconds())
	return counts, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS query_performance (
			event_type String,
			query_hash String,
			strategy String,
			duration_ms Float64,
			total_hits Int64,
			success Bool,
			timestamp DateTime,
			trace_id String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, query_hash)`,

		`CREATE TABLE IF NOT EXISTS search_events (
			query String,
			strategy String,
			success Bool,
			result_count Int32,
			duration_ms Int64,
			request_id String,
			timestamp DateTime
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, strategy)`,

		`CREATE TABLE IF NOT EXISTS product_changelog (
			product_id String,
			operation String,
			timestamp DateTime,
			version Int64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, product_id)`,
	}

	for _, ddl := range tables {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}
