package accel

import (
	"math"

	"github.com/trogers1052/portfolio-analytics/internal/attribution"
	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// columns is a structure-of-arrays view of a holdings slice
type columns struct {
	value []float64
	cost  []float64
	price []float64
	pnl   []float64
}

func columnise(holdings []models.Holding) columns {
	n := len(holdings)
	c := columns{
		value: make([]float64, n),
		cost:  make([]float64, n),
		price: make([]float64, n),
		pnl:   make([]float64, n),
	}
	for i, h := range holdings {
		c.value[i] = h.CurrentValue
		c.cost[i] = h.AverageCost
		c.price[i] = h.CurrentPrice
		c.pnl[i] = h.UnrealizedPnl
	}
	return c
}

// vectors holds the per-holding kernel output
type vectors struct {
	weight       []float64
	ret          []float64
	contribution []float64
	valueStart   []float64
}

func (b *Backend) kernels(c columns, totalValue float64) vectors {
	n := len(c.value)
	v := vectors{
		weight:       make([]float64, n),
		ret:          make([]float64, n),
		contribution: make([]float64, n),
		valueStart:   make([]float64, n),
	}
	b.parallel(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			v.weight[i] = attribution.Weight(c.value[i], totalValue)
			v.ret[i] = attribution.Return(c.price[i], c.cost[i])
			v.contribution[i] = v.weight[i] / 100 * v.ret[i]
			v.valueStart[i] = attribution.ValueStart(c.value[i], c.pnl[i], v.ret[i])
		}
	})
	return v
}

func validateHoldings(holdings []models.Holding, totalValue float64) error {
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

func (b *Backend) HoldingAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	if err := validateHoldings(holdings, totalValue); err != nil {
		return nil, err
	}
	c := columnise(holdings)
	v := b.kernels(c, totalValue)

	records := make([]models.AttributionRecord, len(holdings))
	for i, h := range holdings {
		records[i] = models.AttributionRecord{
			Key:           h.Symbol,
			Weight:        v.weight[i],
			Return:        v.ret[i],
			Contribution:  v.contribution[i],
			ValueStart:    v.valueStart[i],
			ValueEnd:      c.value[i],
			ValueChange:   c.pnl[i],
			HoldingsCount: 1,
		}
	}
	return records, nil
}

func (b *Backend) SectorAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	keys := make([]string, len(holdings))
	for i, h := range holdings {
		keys[i] = h.SectorOrDefault()
	}
	records, ids, v, err := b.grouped(holdings, keys, totalValue)
	if err != nil {
		return nil, err
	}

	top := make([]float64, len(records))
	found := make([]bool, len(records))
	for i, g := range ids {
		if !found[g] || v.contribution[i] > top[g] {
			found[g] = true
			top[g] = v.contribution[i]
			records[g].TopHolding = holdings[i].Symbol
			records[g].TopHoldingReturn = v.ret[i]
		}
	}
	return records, nil
}

func (b *Backend) AssetClassAttribution(holdings []models.Holding, totalValue float64) ([]models.AttributionRecord, error) {
	keys := make([]string, len(holdings))
	for i, h := range holdings {
		keys[i] = string(h.AssetClass)
	}
	records, ids, _, err := b.grouped(holdings, keys, totalValue)
	if err != nil {
		return nil, err
	}

	seen := make(map[[2]string]struct{})
	for i, g := range ids {
		k := [2]string{keys[i], holdings[i].SectorOrDefault()}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			records[g].SectorsCount++
		}
	}
	return records, nil
}

// grouped assigns each holding a group id, then accumulates the vectors
// per group in input order. ids[i] is the group of holdings[i].
func (b *Backend) grouped(holdings []models.Holding, keys []string, totalValue float64) ([]models.AttributionRecord, []int, vectors, error) {
	if err := validateHoldings(holdings, totalValue); err != nil {
		return nil, nil, vectors{}, err
	}
	c := columnise(holdings)
	v := b.kernels(c, totalValue)

	index := make(map[string]int)
	ids := make([]int, len(keys))
	records := make([]models.AttributionRecord, 0)
	weighted := make([]float64, 0)
	for i, k := range keys {
		g, ok := index[k]
		if !ok {
			g = len(records)
			index[k] = g
			records = append(records, models.AttributionRecord{Key: k})
			weighted = append(weighted, 0)
		}
		ids[i] = g
		r := &records[g]
		r.Weight += v.weight[i]
		r.Contribution += v.contribution[i]
		r.ValueStart += v.valueStart[i]
		r.ValueEnd += c.value[i]
		r.ValueChange += c.pnl[i]
		r.HoldingsCount++
		weighted[g] += c.value[i] * v.ret[i]
	}

	for g := range records {
		if records[g].ValueEnd != 0 {
			records[g].Return = weighted[g] / records[g].ValueEnd
		}
	}
	return records, ids, v, nil
}

func (b *Backend) BrinsonFachler(portfolioWeight, benchmarkWeight, portfolioReturn, benchmarkReturn float64) (models.BrinsonResult, error) {
	return attribution.BrinsonFachler(portfolioWeight, benchmarkWeight, portfolioReturn, benchmarkReturn), nil
}
