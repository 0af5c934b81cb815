package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// Reader is the subset of *kafka.Reader the consumer uses
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// HoldingsRepository stores the latest holdings snapshot
type HoldingsRepository interface {
	ReplaceAllHoldings(rows []*models.HoldingRow) error
}

// SnapshotHandler is notified after a snapshot has been stored
type SnapshotHandler interface {
	HandleSnapshot(ctx context.Context, holdings []models.Holding) error
}

// PositionsConsumer consumes broker position snapshots, replaces the stored
// holdings and triggers an attribution refresh.
type PositionsConsumer struct {
	reader  Reader
	repo    HoldingsRepository
	handler SnapshotHandler
	logger  *zap.Logger
}

// NewPositionsConsumer creates a consumer for the positions topic. handler may be nil.
func NewPositionsConsumer(brokers []string, topic, groupID string, repo HoldingsRepository, handler SnapshotHandler, logger *zap.Logger) *PositionsConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &PositionsConsumer{
		reader:  reader,
		repo:    repo,
		handler: handler,
		logger:  logger,
	}
}

// Start consumes until ctx is cancelled
func (c *PositionsConsumer) Start(ctx context.Context) error {
	c.log().Info("Starting positions consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			c.log().Info("Positions consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				c.log().Error("Error reading message", zap.Error(err))
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log().Error("Error processing positions snapshot",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			}
		}
	}
}

func (c *PositionsConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PositionsEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal positions event: %w", err)
	}

	if event.EventType != models.EventPositionsSnapshot {
		c.log().Debug("Ignoring event type", zap.String("event_type", event.EventType))
		return nil
	}

	asOf := parseTimestamp(event.Timestamp)
	rows := make([]*models.HoldingRow, 0, len(event.Data.Positions))
	for _, p := range event.Data.Positions {
		row, err := convertPosition(p, asOf)
		if err != nil {
			return fmt.Errorf("failed to convert position %s: %w", p.Symbol, err)
		}
		rows = append(rows, row)
	}

	if err := c.repo.ReplaceAllHoldings(rows); err != nil {
		return fmt.Errorf("failed to replace holdings: %w", err)
	}
	c.log().Info("Stored positions snapshot",
		zap.String("source", event.Source),
		zap.Int("holdings", len(rows)))

	if c.handler == nil {
		return nil
	}
	if err := c.handler.HandleSnapshot(ctx, models.HoldingsFromRows(rows)); err != nil {
		return fmt.Errorf("failed to refresh analytics: %w", err)
	}
	return nil
}

// convertPosition maps a broker position to a holding row. The current price
// falls back to equity / quantity when the broker omits it.
func convertPosition(p models.PositionData, asOf time.Time) (*models.HoldingRow, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("missing symbol")
	}
	quantity, err := decimal.NewFromString(p.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q: %w", p.Quantity, err)
	}
	avgCost, err := decimal.NewFromString(p.AverageBuyPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid average buy price %q: %w", p.AverageBuyPrice, err)
	}

	price, err := decimal.NewFromString(p.CurrentPrice)
	if err != nil {
		equity, eqErr := decimal.NewFromString(p.Equity)
		if eqErr != nil || quantity.IsZero() {
			return nil, fmt.Errorf("no current price or equity")
		}
		price = equity.Div(quantity)
	}

	assetClass := models.AssetClass(strings.ToLower(strings.TrimSpace(p.AssetClass)))
	if assetClass == "" {
		assetClass = models.AssetClassEquity
	}

	return &models.HoldingRow{
		Symbol:       strings.ToUpper(p.Symbol),
		Name:         p.Name,
		Quantity:     quantity,
		AverageCost:  avgCost,
		CurrentPrice: price,
		Sector:       p.Sector,
		AssetClass:   assetClass,
		AsOf:         asOf,
	}, nil
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}

func (c *PositionsConsumer) log() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

// Close closes the underlying reader
func (c *PositionsConsumer) Close() error {
	return c.reader.Close()
}
