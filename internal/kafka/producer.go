package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// portfolioKey is the message key of portfolio-wide events
const portfolioKey = "portfolio"

// Writer is the subset of *kafka.Writer the producer uses
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes analytics events
type Producer struct {
	writer Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishAttributionUpdated announces a recomputed portfolio attribution
func (p *Producer) PublishAttributionUpdated(ctx context.Context, a *models.PortfolioAttribution) error {
	event := models.AnalyticsEvent{
		EventType:   models.EventAttributionUpdated,
		Key:         portfolioKey,
		Attribution: a,
		Timestamp:   time.Now(),
	}
	return p.publish(ctx, portfolioKey, event)
}

// PublishRiskMetricsUpdated announces a new risk snapshot, keyed by symbol
func (p *Producer) PublishRiskMetricsUpdated(ctx context.Context, s *models.RiskSnapshot) error {
	event := models.AnalyticsEvent{
		EventType: models.EventRiskMetricsUpdated,
		Key:       s.Symbol,
		Risk:      s,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, s.Symbol, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.AnalyticsEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
