package attribution

import (
	"math"
	"sort"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// WithContributionPercent returns a copy of records with ContributionPercent
// set to each contribution's share of periodReturn.
func WithContributionPercent(records []models.AttributionRecord, periodReturn float64) []models.AttributionRecord {
	out := make([]models.AttributionRecord, len(records))
	copy(out, records)
	for i := range out {
		if periodReturn == 0 {
			out[i].ContributionPercent = 0
			continue
		}
		out[i].ContributionPercent = out[i].Contribution / periodReturn * 100
	}
	return out
}

// SortField selects the column SortRecords orders by
type SortField string

const (
	SortByContribution SortField = "contribution"
	SortByReturn       SortField = "return"
	SortByWeight       SortField = "weight"
	SortByKey          SortField = "key"
)

// SortRecords returns a stably sorted copy of records. Unknown fields sort by
// contribution.
func SortRecords(records []models.AttributionRecord, by SortField, desc bool) []models.AttributionRecord {
	out := make([]models.AttributionRecord, len(records))
	copy(out, records)

	less := func(a, b models.AttributionRecord) bool {
		switch by {
		case SortByReturn:
			return a.Return < b.Return
		case SortByWeight:
			return a.Weight < b.Weight
		case SortByKey:
			return a.Key < b.Key
		default:
			return a.Contribution < b.Contribution
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// Filter restricts holdings to the listed sectors and asset classes.
// An empty list matches everything.
type Filter struct {
	Sectors      []string            `json:"sectors,omitempty"`
	AssetClasses []models.AssetClass `json:"asset_classes,omitempty"`
}

// FilterHoldings keeps the holdings matching f, in input order
func FilterHoldings(holdings []models.Holding, f Filter) []models.Holding {
	sectors := make(map[string]bool, len(f.Sectors))
	for _, s := range f.Sectors {
		sectors[s] = true
	}
	classes := make(map[models.AssetClass]bool, len(f.AssetClasses))
	for _, c := range f.AssetClasses {
		classes[c] = true
	}

	out := make([]models.Holding, 0, len(holdings))
	for _, h := range holdings {
		if len(sectors) > 0 && !sectors[h.SectorOrDefault()] {
			continue
		}
		if len(classes) > 0 && !classes[h.AssetClass] {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Period is a lookback window used to scale annualised benchmark returns
type Period string

const (
	Period1D Period = "1d"
	Period1W Period = "1w"
	Period1M Period = "1m"
	Period3M Period = "3m"
	Period6M Period = "6m"
	Period1Y Period = "1y"
	Period2Y Period = "2y"
	Period3Y Period = "3y"
	Period5Y Period = "5y"
)

var periodYears = map[Period]float64{
	Period1D: 1.0 / 365,
	Period1W: 7.0 / 365,
	Period1M: 30.0 / 365,
	Period3M: 90.0 / 365,
	Period6M: 180.0 / 365,
	Period1Y: 1,
	Period2Y: 2,
	Period3Y: 3,
	Period5Y: 5,
}

// Valid reports whether p is a known period
func (p Period) Valid() bool {
	_, ok := periodYears[p]
	return ok
}

// BenchmarkReturn scales an annualised return linearly to period.
// Unknown periods are treated as one year.
func BenchmarkReturn(annualised float64, period Period) float64 {
	years, ok := periodYears[period]
	if !ok {
		years = 1
	}
	return annualised * years
}

// comparisonSectors caps the sectors listed on each side of a comparison
const comparisonSectors = 3

// CompareToBenchmark sets portfolioReturn against the annualised benchmark
// scaled to period. ExcessReturnPercent is the excess relative to the
// magnitude of the benchmark return, 0 when that return is 0. Sectors whose
// return beats or trails the benchmark are listed by contribution, at most
// three each.
func CompareToBenchmark(portfolioReturn, annualisedBenchmark float64, period Period, sectors []models.AttributionRecord) models.BenchmarkComparison {
	benchmark := BenchmarkReturn(annualisedBenchmark, period)
	c := models.BenchmarkComparison{
		Period:                 string(period),
		PortfolioReturn:        portfolioReturn,
		BenchmarkReturn:        benchmark,
		ExcessReturn:           portfolioReturn - benchmark,
		SectorOutperformance:   make([]models.AttributionRecord, 0, comparisonSectors),
		SectorUnderperformance: make([]models.AttributionRecord, 0, comparisonSectors),
	}
	if benchmark != 0 {
		c.ExcessReturnPercent = c.ExcessReturn / math.Abs(benchmark) * 100
	}

	for _, s := range SortRecords(sectors, SortByContribution, true) {
		switch {
		case s.Return > benchmark && len(c.SectorOutperformance) < comparisonSectors:
			c.SectorOutperformance = append(c.SectorOutperformance, s)
		case s.Return < benchmark && len(c.SectorUnderperformance) < comparisonSectors:
			c.SectorUnderperformance = append(c.SectorUnderperformance, s)
		}
	}
	return c
}
