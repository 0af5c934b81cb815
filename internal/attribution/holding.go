// Package attribution decomposes a portfolio's return into the contributions
// of its holdings, sectors and asset classes.
package attribution

import (
	"math"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// HoldingAttribution computes weight, return and contribution for every
// holding, in input order. Percentages are on a 0-100 scale. A totalValue of
// zero yields zero weights.
func HoldingAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	if err := validate(holdings, totalValue); err != nil {
		return nil, err
	}

	records := make([]models.AttributionRecord, len(holdings))
	for i, h := range holdings {
		weight := Weight(h.CurrentValue, totalValue)
		ret := Return(h.CurrentPrice, h.AverageCost)
		records[i] = models.AttributionRecord{
			Key:           h.Symbol,
			Weight:        weight,
			Return:        ret,
			Contribution:  weight / 100 * ret,
			ValueStart:    ValueStart(h.CurrentValue, h.UnrealizedPnl, ret),
			ValueEnd:      h.CurrentValue,
			ValueChange:   h.UnrealizedPnl,
			HoldingsCount: 1,
		}
	}
	return records, nil
}

// Weight is value as a percentage of totalValue
func Weight(value, totalValue float64) float64 {
	if totalValue == 0 {
		return 0
	}
	return value / totalValue * 100
}

// Return is the percentage gain of price over averageCost, 0 without a cost basis
func Return(price, averageCost float64) float64 {
	if averageCost == 0 {
		return 0
	}
	return (price - averageCost) / averageCost * 100
}

// ValueStart backs the period's starting value out of the end value and return.
// A total loss falls back to the cost basis.
func ValueStart(valueEnd, valueChange, ret float64) float64 {
	growth := 1 + ret/100
	if growth == 0 {
		return valueEnd - valueChange
	}
	return valueEnd / growth
}

func validate(holdings []models.Holding, totalValue float64) error {
	if math.IsNaN(totalValue) || math.IsInf(totalValue, 0) || totalValue < 0 {
		return models.InvalidInputf("total value must be finite and non-negative, got %g", totalValue)
	}
	for _, h := range holdings {
		if err := h.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TotalValue sums the current value of all holdings
func TotalValue(holdings []models.Holding) float64 {
	total := 0.0
	for _, h := range holdings {
		total += h.CurrentValue
	}
	return total
}
