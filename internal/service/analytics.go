// Package service combines stored holdings and prices with the compute
// dispatcher, caching results and announcing them on Kafka.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trogers1052/portfolio-analytics/internal/attribution"
	"github.com/trogers1052/portfolio-analytics/internal/models"
	"github.com/trogers1052/portfolio-analytics/internal/riskstats"
)

// Source recorded on attribution snapshots built from broker positions
const snapshotSource = "positions"

const (
	attributionKeyPrefix = "attribution:"
	riskKeyPrefix        = "risk:"
)

// Repository is the persistence the service reads and writes
type Repository interface {
	GetAllHoldings() ([]*models.HoldingRow, error)
	GetCloseSeries(symbol string, startDate, endDate time.Time) ([]float64, error)
	CreateRiskSnapshot(s *models.RiskSnapshot) error
	CreateAttributionSnapshot(s *models.AttributionSnapshot) error
}

// Compute runs the analytics kernels
type Compute interface {
	HoldingAttribution(ctx context.Context, holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error)
	SectorAttribution(ctx context.Context, holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error)
	AssetClassAttribution(ctx context.Context, holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error)
	RiskMetrics(ctx context.Context, portfolio, benchmark, values []float64, riskFreeRate float64) (models.RiskMetrics, error)
	BackendName() string
}

// Cache stores computed results
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Publisher announces recomputed analytics
type Publisher interface {
	PublishAttributionUpdated(ctx context.Context, a *models.PortfolioAttribution) error
	PublishRiskMetricsUpdated(ctx context.Context, s *models.RiskSnapshot) error
}

// Analytics is the application service behind the HTTP API and the
// positions consumer. cache and publisher are optional.
type Analytics struct {
	repo      Repository
	compute   Compute
	cache     Cache
	publisher Publisher
	logger    *zap.Logger
}

// New creates the analytics service
func New(repo Repository, compute Compute, cache Cache, publisher Publisher, logger *zap.Logger) *Analytics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analytics{
		repo:      repo,
		compute:   compute,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Attribute builds every attribution level for holdings. Contribution
// percentages are relative to periodReturn, or to the portfolio's own total
// contribution when periodReturn is 0.
func (a *Analytics) Attribute(ctx context.Context, holdings []models.Holding, periodReturn float64) (*models.PortfolioAttribution, error) {
	total := attribution.TotalValue(holdings)

	holdingRecs, err := a.compute.HoldingAttribution(ctx, holdings, total)
	if err != nil {
		return nil, err
	}
	sectorRecs, err := a.compute.SectorAttribution(ctx, holdings, total)
	if err != nil {
		return nil, err
	}
	assetRecs, err := a.compute.AssetClassAttribution(ctx, holdings, total)
	if err != nil {
		return nil, err
	}

	summary := attribution.Summary(holdingRecs, sectorRecs, assetRecs)
	if periodReturn == 0 {
		periodReturn = summary.TotalContribution
	}

	result := &models.PortfolioAttribution{
		TotalValue:   total,
		Holdings:     attribution.WithContributionPercent(holdingRecs, periodReturn),
		Sectors:      attribution.WithContributionPercent(sectorRecs, periodReturn),
		AssetClasses: attribution.WithContributionPercent(assetRecs, periodReturn),
	}
	// recomputed so the summary records carry contribution percentages
	result.Summary = attribution.Summary(result.Holdings, result.Sectors, result.AssetClasses)
	return result, nil
}

// PortfolioAttribution attributes the stored holdings
func (a *Analytics) PortfolioAttribution(ctx context.Context, periodReturn float64) (*models.PortfolioAttribution, error) {
	key := fmt.Sprintf("%s%g", attributionKeyPrefix, periodReturn)

	var cached models.PortfolioAttribution
	if a.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	rows, err := a.repo.GetAllHoldings()
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	result, err := a.Attribute(ctx, models.HoldingsFromRows(rows), periodReturn)
	if err != nil {
		return nil, err
	}

	a.cacheSet(ctx, key, result)
	return result, nil
}

// HandleSnapshot recomputes attribution for a freshly stored holdings
// snapshot, records it and publishes ATTRIBUTION_UPDATED. Cached attribution
// is dropped once the new snapshot is stored, so reads served while the
// refresh ran cannot outlive it.
func (a *Analytics) HandleSnapshot(ctx context.Context, holdings []models.Holding) error {
	result, err := a.Attribute(ctx, holdings, 0)
	if err != nil {
		return fmt.Errorf("failed to attribute snapshot: %w", err)
	}

	snapshot := &models.AttributionSnapshot{
		Source:       snapshotSource,
		TotalValue:   result.TotalValue,
		HoldingCount: len(holdings),
		Attribution:  *result,
	}
	if err := a.repo.CreateAttributionSnapshot(snapshot); err != nil {
		return fmt.Errorf("failed to store attribution snapshot: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.InvalidatePrefix(ctx, attributionKeyPrefix); err != nil {
			a.logger.Warn("Failed to invalidate attribution cache", zap.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.PublishAttributionUpdated(ctx, result); err != nil {
			a.logger.Error("Failed to publish attribution update", zap.Error(err))
		}
	}

	a.logger.Info("Attribution refreshed",
		zap.Int("holdings", len(holdings)),
		zap.Float64("total_value", result.TotalValue),
		zap.Float64("total_contribution", result.Summary.TotalContribution),
	)
	return nil
}

// SymbolRisk computes risk metrics of symbol against benchmark over the
// daily closes between start and end. When the two histories differ in
// length the most recent common tail is used. The result is stored as a
// risk snapshot and published as RISK_METRICS_UPDATED.
func (a *Analytics) SymbolRisk(ctx context.Context, symbol, benchmark string, start, end time.Time, riskFreeRate float64) (*models.RiskSnapshot, error) {
	if symbol == "" || benchmark == "" {
		return nil, models.InvalidInputf("symbol and benchmark are required")
	}
	if end.Before(start) {
		return nil, models.InvalidInputf("period end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	key := fmt.Sprintf("%s%s:%s:%s:%s:%g", riskKeyPrefix, symbol, benchmark,
		start.Format(time.DateOnly), end.Format(time.DateOnly), riskFreeRate)

	var cached models.RiskSnapshot
	if a.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	values, err := a.repo.GetCloseSeries(symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
	}
	benchValues, err := a.repo.GetCloseSeries(benchmark, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for %s: %w", benchmark, err)
	}
	values, benchValues = alignTail(values, benchValues)

	returns, err := riskstats.Returns(values)
	if err != nil {
		return nil, err
	}
	benchReturns, err := riskstats.Returns(benchValues)
	if err != nil {
		return nil, err
	}

	metrics, err := a.compute.RiskMetrics(ctx, returns, benchReturns, values, riskFreeRate)
	if err != nil {
		return nil, err
	}

	snapshot := &models.RiskSnapshot{
		Symbol:       symbol,
		Benchmark:    benchmark,
		PeriodStart:  start,
		PeriodEnd:    end,
		RiskFreeRate: riskFreeRate,
		Observations: len(returns),
		Metrics:      metrics,
		Backend:      a.compute.BackendName(),
	}
	if err := a.repo.CreateRiskSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("failed to store risk snapshot: %w", err)
	}

	if a.publisher != nil {
		if err := a.publisher.PublishRiskMetricsUpdated(ctx, snapshot); err != nil {
			a.logger.Error("Failed to publish risk update", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	a.cacheSet(ctx, key, snapshot)
	return snapshot, nil
}

// alignTail trims the longer series so both end on the same observation
func alignTail(x, y []float64) ([]float64, []float64) {
	if len(x) > len(y) {
		return x[len(x)-len(y):], y
	}
	return x, y[len(y)-len(x):]
}

func (a *Analytics) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if a.cache == nil {
		return false
	}
	found, err := a.cache.Get(ctx, key, dest)
	if err != nil {
		a.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (a *Analytics) cacheSet(ctx context.Context, key string, value interface{}) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, key, value); err != nil {
		a.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
