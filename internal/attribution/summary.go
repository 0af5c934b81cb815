package attribution

import (
	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// Summary picks out the extremes of an attribution run. Ties keep the
// earliest record.
func Summary(holdingRecs, sectorRecs, assetClassRecs []models.AttributionRecord) models.AttributionSummary {
	var s models.AttributionSummary
	for _, r := range holdingRecs {
		s.TotalContribution += r.Contribution
		switch {
		case r.Contribution > 0:
			s.PositiveHoldings++
		case r.Contribution < 0:
			s.NegativeHoldings++
		default:
			s.NeutralHoldings++
		}
	}

	contribution := func(r models.AttributionRecord) float64 { return r.Contribution }
	ret := func(r models.AttributionRecord) float64 { return r.Return }

	s.TopContributor, s.BottomContributor = extremes(holdingRecs, contribution)
	s.BestSector, s.WorstSector = extremes(sectorRecs, ret)
	s.BestAssetClass, s.WorstAssetClass = extremes(assetClassRecs, ret)
	return s
}

func extremes(records []models.AttributionRecord, value func(models.AttributionRecord) float64) (max, min *models.AttributionRecord) {
	if len(records) == 0 {
		return nil, nil
	}
	hi, lo := 0, 0
	for i := 1; i < len(records); i++ {
		if value(records[i]) > value(records[hi]) {
			hi = i
		}
		if value(records[i]) < value(records[lo]) {
			lo = i
		}
	}
	top, bottom := records[hi], records[lo]
	return &top, &bottom
}
