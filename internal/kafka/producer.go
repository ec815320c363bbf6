package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/quang1403/ecommerce-backend/internal/config"
	"github.com/quang1403/ecommerce-backend/internal/models"
	"github.com/quang1403/ecommerce-backend/internal/observability"
)

// Producer publishes one search event per request for downstream analytics
// consumers. Publishing is best-effort from the API's point of view; a down
// broker must never fail a search.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSearches,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxRetries,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	logger.Info("kafka producer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.TopicSearches),
	)

	return &Producer{
		writer: w,
		logger: logger,
	}
}

func (p *Producer) PublishSearchEvent(ctx context.Context, event *models.SearchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		observability.SearchEventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("marshaling search event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Query),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "strategy", Value: []byte(event.Strategy)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		observability.SearchEventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publishing search event: %w", err)
	}

	observability.SearchEventsPublished.WithLabelValues("success").Inc()
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
