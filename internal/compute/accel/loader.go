package accel

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/trogers1052/portfolio-analytics/internal/compute"
	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// ErrBackendDisabled is returned by the loader when Config.Enabled is false
var ErrBackendDisabled = compute.ErrBackendDisabled

// ErrCalibration is returned when the backend disagrees with the reference
var ErrCalibration = errors.New("accelerated backend failed calibration")

// calibrationTolerance is the largest difference from the reference
// accepted on the calibration set
const calibrationTolerance = 1e-9

// NewLoader returns a compute.Loader that builds the backend and checks it
// against the reference implementation before handing it out.
func NewLoader(cfg Config) compute.Loader {
	return func(ctx context.Context) (compute.Backend, error) {
		if !cfg.Enabled {
			return nil, ErrBackendDisabled
		}
		b := New(cfg)
		if err := calibrate(ctx, b, compute.Reference{}); err != nil {
			return nil, err
		}
		return b, nil
	}
}

type check struct {
	name string
	run  func(compute.Backend) ([]float64, error)
}

func calibrate(ctx context.Context, b, ref compute.Backend) error {
	for _, c := range checks() {
		if err := ctx.Err(); err != nil {
			return err
		}
		got, err := c.run(b)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCalibration, c.name, err)
		}
		want, err := c.run(ref)
		if err != nil {
			return fmt.Errorf("%w: %s: reference: %v", ErrCalibration, c.name, err)
		}
		if len(got) != len(want) {
			return fmt.Errorf("%w: %s: got %d values, want %d", ErrCalibration, c.name, len(got), len(want))
		}
		for i := range got {
			if math.Abs(got[i]-want[i]) > calibrationTolerance {
				return fmt.Errorf("%w: %s[%d]: got %g, want %g", ErrCalibration, c.name, i, got[i], want[i])
			}
		}
	}
	return nil
}

// calibrationSeries is deterministic and long enough to span several chunks at
// small chunk sizes.
func calibrationSeries(n int, phase float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := float64(i)
		out[i] = 0.01*math.Sin(0.37*x+phase) + 0.004*math.Cos(1.3*x)
	}
	return out
}

func calibrationValues(n int) []float64 {
	out := make([]float64, n)
	v := 100.0
	for i := range out {
		v *= 1 + 0.02*math.Sin(0.21*float64(i))
		out[i] = v
	}
	return out
}

func calibrationHoldings() []models.Holding {
	sectors := []string{"Technology", "Energy", "", "Healthcare"}
	classes := []models.AssetClass{models.AssetClassEquity, models.AssetClassETF, models.AssetClassCrypto}
	holdings := make([]models.Holding, 0, 24)
	for i := 0; i < 24; i++ {
		qty := float64(5 + i*3)
		cost := 20 + float64(i)*7.5
		price := cost * (1 + 0.05*math.Sin(float64(i)))
		value := qty * price
		holdings = append(holdings, models.Holding{
			Symbol:        fmt.Sprintf("P%02d", i),
			Quantity:      qty,
			AverageCost:   cost,
			CurrentPrice:  price,
			CurrentValue:  value,
			UnrealizedPnl: value - qty*cost,
			Sector:        sectors[i%len(sectors)],
			AssetClass:    classes[i%len(classes)],
		})
	}
	return holdings
}

func records(recs []models.AttributionRecord, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(recs)*7)
	for _, r := range recs {
		out = append(out, r.Weight, r.Return, r.Contribution, r.ValueStart, float64(r.HoldingsCount),
			r.TopHoldingReturn, float64(r.SectorsCount))
	}
	return out, nil
}

func scalar(v float64, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	return []float64{v}, nil
}

func checks() []check {
	x, y := calibrationSeries(1000, 0), calibrationSeries(1000, 0.8)
	flat := []float64{0.5, 0.5, 0.5, 0.5}
	tenths := make([]float64, len(x))
	for i := range tenths {
		tenths[i] = 0.1
	}
	values := calibrationValues(1000)
	holdings := calibrationHoldings()
	total := 0.0
	for _, h := range holdings {
		total += h.CurrentValue
	}

	return []check{
		{"correlation", func(b compute.Backend) ([]float64, error) { return scalar(b.Correlation(x, y)) }},
		{"correlation_flat", func(b compute.Backend) ([]float64, error) { return scalar(b.Correlation(x[:4], flat)) }},
		{"beta", func(b compute.Backend) ([]float64, error) { return scalar(b.Beta(x, y)) }},
		{"beta_flat", func(b compute.Backend) ([]float64, error) { return scalar(b.Beta(x[:4], flat)) }},
		{"correlation_constant", func(b compute.Backend) ([]float64, error) { return scalar(b.Correlation(x, tenths)) }},
		{"beta_constant", func(b compute.Backend) ([]float64, error) { return scalar(b.Beta(x, tenths)) }},
		{"sharpe_ratio", func(b compute.Backend) ([]float64, error) { return scalar(b.SharpeRatio(x, 0.0001)) }},
		{"sharpe_ratio_constant", func(b compute.Backend) ([]float64, error) { return scalar(b.SharpeRatio(tenths, 0)) }},
		{"max_drawdown", func(b compute.Backend) ([]float64, error) { return scalar(b.MaxDrawdown(values)) }},
		{"standard_deviation", func(b compute.Backend) ([]float64, error) { return scalar(b.StandardDeviation(y)) }},
		{"holding_attribution", func(b compute.Backend) ([]float64, error) { return records(b.HoldingAttribution(holdings, total)) }},
		{"sector_attribution", func(b compute.Backend) ([]float64, error) { return records(b.SectorAttribution(holdings, total)) }},
		{"asset_class_attribution", func(b compute.Backend) ([]float64, error) {
			return records(b.AssetClassAttribution(holdings, total))
		}},
		{"brinson_fachler", func(b compute.Backend) ([]float64, error) {
			r, err := b.BrinsonFachler(0.3, 0.25, 0.12, 0.08)
			if err != nil {
				return nil, err
			}
			return []float64{r.Allocation, r.Selection, r.Interaction, r.Total}, nil
		}},
	}
}
