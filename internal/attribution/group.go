package attribution

import (
	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// SectorAttribution aggregates holdings by sector. Holdings without a sector
// are reported under models.UncategorizedSector. Each record names its top
// holding by contribution; ties keep the first seen.
func SectorAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	return groupBy(holdings, totalValue, bySector)
}

// AssetClassAttribution aggregates holdings by asset class and counts the
// distinct sectors in each
func AssetClassAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	return groupBy(holdings, totalValue, byAssetClass)
}

type grouping int

const (
	bySector grouping = iota
	byAssetClass
)

func (g grouping) key(h models.Holding) string {
	if g == bySector {
		return h.SectorOrDefault()
	}
	return string(h.AssetClass)
}

type group struct {
	record          models.AttributionRecord
	weightedValue   float64
	topContribution float64
	sectors         map[string]struct{}
}

// groupBy emits one record per key in first-seen order. Group return is the
// value-weighted average of member returns.
func groupBy(holdings []models.Holding, totalValue float64, by grouping) ([]models.AttributionRecord, error) {
	perHolding, err := HoldingAttribution(holdings, totalValue)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	groups := make([]*group, 0)
	for i, h := range holdings {
		k := by.key(h)
		pos, ok := index[k]
		if !ok {
			pos = len(groups)
			index[k] = pos
			groups = append(groups, &group{
				record:  models.AttributionRecord{Key: k},
				sectors: make(map[string]struct{}),
			})
		}

		g := groups[pos]
		rec := perHolding[i]
		g.record.Weight += rec.Weight
		g.record.Contribution += rec.Contribution
		g.record.ValueStart += rec.ValueStart
		g.record.ValueEnd += rec.ValueEnd
		g.record.ValueChange += rec.ValueChange
		g.record.HoldingsCount++
		g.weightedValue += h.CurrentValue * rec.Return

		switch by {
		case bySector:
			if g.record.HoldingsCount == 1 || rec.Contribution > g.topContribution {
				g.topContribution = rec.Contribution
				g.record.TopHolding = h.Symbol
				g.record.TopHoldingReturn = rec.Return
			}
		case byAssetClass:
			g.sectors[h.SectorOrDefault()] = struct{}{}
		}
	}

	records := make([]models.AttributionRecord, len(groups))
	for i, g := range groups {
		if g.record.ValueEnd != 0 {
			g.record.Return = g.weightedValue / g.record.ValueEnd
		}
		if by == byAssetClass {
			g.record.SectorsCount = len(g.sectors)
		}
		records[i] = g.record
	}
	return records, nil
}
