package compute

import (
	"github.com/trogers1052/portfolio-analytics/internal/attribution"
	"github.com/trogers1052/portfolio-analytics/internal/models"
	"github.com/trogers1052/portfolio-analytics/internal/riskstats"
)

// ReferenceName is the Name of the reference backend
const ReferenceName = "reference"

// Reference is the plain single-threaded implementation every other backend
// must agree with.
type Reference struct{}

var _ Backend = Reference{}

func (Reference) Name() string { return ReferenceName }

func (Reference) Correlation(x, y []float64) (float64, error) {
	return riskstats.Correlation(x, y)
}

func (Reference) Beta(portfolio, benchmark []float64) (float64, error) {
	return riskstats.Beta(portfolio, benchmark)
}

func (Reference) SharpeRatio(returns []float64, riskFreeRate float64) (float64, error) {
	return riskstats.SharpeRatio(returns, riskFreeRate)
}

func (Reference) MaxDrawdown(values []float64) (float64, error) {
	return riskstats.MaxDrawdown(values)
}

func (Reference) StandardDeviation(returns []float64) (float64, error) {
	return riskstats.StandardDeviation(returns)
}

func (Reference) HoldingAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	return attribution.HoldingAttribution(holdings, totalValue)
}

func (Reference) SectorAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	return attribution.SectorAttribution(holdings, totalValue)
}

func (Reference) AssetClassAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	return attribution.AssetClassAttribution(holdings, totalValue)
}

func (Reference) BrinsonFachler(portfolioWeight, benchmarkWeight, portfolioReturn, benchmarkReturn float64) (models.BrinsonResult, error) {
	return attribution.BrinsonFachler(portfolioWeight, benchmarkWeight, portfolioReturn, benchmarkReturn), nil
}
