// Package riskstats implements the scalar risk statistics of return and
// value series. Every function is pure and rejects empty, mismatched or
// non-finite input with models.ErrInvalidInput.
package riskstats

import (
	"math"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// Fallback values for degenerate but valid inputs
const (
	ZeroVarianceCorrelation = 0.0
	ZeroVarianceBeta        = 1.0
	ZeroVarianceSharpe      = 0.0
)

// varianceEpsilon bounds, per element and relative to the squared mean, the
// centred sum of squares still treated as rounding noise
const varianceEpsilon = 1e-24

// ZeroVariance reports whether values carry no variance given their mean and
// centred sum of squares ss: either every element equals the first, or ss
// is at most varianceEpsilon·n·max(1, mean²).
func ZeroVariance(values []float64, mean, ss float64) bool {
	if ss == 0 {
		return true
	}
	constant := true
	for _, v := range values[1:] {
		if v != values[0] {
			constant = false
			break
		}
	}
	if constant {
		return true
	}
	return ss <= varianceEpsilon*float64(len(values))*math.Max(1, mean*mean)
}

// Correlation is the Pearson correlation of x and y, 0 if either is constant
func Correlation(x, y []float64) (float64, error) {
	if err := checkPair("correlation", x, y); err != nil {
		return 0, err
	}
	mx, my := mean(x), mean(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if ZeroVariance(x, mx, sxx) || ZeroVariance(y, my, syy) {
		return ZeroVarianceCorrelation, nil
	}
	return clamp(sxy/math.Sqrt(sxx*syy), -1, 1), nil
}

// Beta is cov(portfolio, benchmark) / var(benchmark), 1 for a constant benchmark
func Beta(portfolio, benchmark []float64) (float64, error) {
	if err := checkPair("beta", portfolio, benchmark); err != nil {
		return 0, err
	}
	mp, mb := mean(portfolio), mean(benchmark)
	var cov, varB float64
	for i := range portfolio {
		db := benchmark[i] - mb
		cov += (portfolio[i] - mp) * db
		varB += db * db
	}
	if ZeroVariance(benchmark, mb, varB) {
		return ZeroVarianceBeta, nil
	}
	return cov / varB, nil
}

// SharpeRatio is (mean(returns) - riskFreeRate) / stddev(returns).
// The rate must be expressed per period, like the returns.
func SharpeRatio(returns []float64, riskFreeRate float64) (float64, error) {
	if err := checkSeries("sharpe ratio", returns); err != nil {
		return 0, err
	}
	if !finite(riskFreeRate) {
		return 0, models.InvalidInputf("sharpe ratio: risk-free rate must be finite")
	}
	m, ss := centred(returns)
	if ZeroVariance(returns, m, ss) {
		return ZeroVarianceSharpe, nil
	}
	return (m - riskFreeRate) / math.Sqrt(ss/float64(len(returns))), nil
}

// MaxDrawdown is the largest peak-to-trough decline of values as a fraction
// of the peak, always in [0, 1]. The first value seeds the peak and must be
// positive; no value may be negative.
func MaxDrawdown(values []float64) (float64, error) {
	if err := CheckDrawdownSeries(values); err != nil {
		return 0, err
	}
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD, nil
}

// StandardDeviation is the population standard deviation (divides by N)
func StandardDeviation(returns []float64) (float64, error) {
	if err := checkSeries("standard deviation", returns); err != nil {
		return 0, err
	}
	return stddev(returns), nil
}

// Mean is the arithmetic mean
func Mean(values []float64) (float64, error) {
	if err := checkSeries("mean", values); err != nil {
		return 0, err
	}
	return mean(values), nil
}

// Covariance is the population covariance of x and y
func Covariance(x, y []float64) (float64, error) {
	if err := checkPair("covariance", x, y); err != nil {
		return 0, err
	}
	mx, my := mean(x), mean(y)
	sum := 0.0
	for i := range x {
		sum += (x[i] - mx) * (y[i] - my)
	}
	return sum / float64(len(x)), nil
}

// Returns converts a value series into simple period returns, one shorter
// than the input.
func Returns(values []float64) ([]float64, error) {
	if len(values) < 2 {
		return nil, models.InvalidInputf("returns: need at least 2 values, got %d", len(values))
	}
	if err := checkSeries("returns", values); err != nil {
		return nil, err
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			return nil, models.InvalidInputf("returns: zero value at index %d", i-1)
		}
		out[i-1] = values[i]/values[i-1] - 1
	}
	return out, nil
}

// ExponentialMovingAverage smooths values with factor alpha in (0, 1]
func ExponentialMovingAverage(values []float64, alpha float64) ([]float64, error) {
	if err := checkSeries("ema", values); err != nil {
		return nil, err
	}
	if !(alpha > 0 && alpha <= 1) {
		return nil, models.InvalidInputf("ema: alpha must be in (0, 1], got %g", alpha)
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// Compute bundles all five statistics. Correlation, beta and standard
// deviation use the return series; max drawdown uses the value series.
func Compute(portfolio, benchmark, values []float64, riskFreeRate float64) (models.RiskMetrics, error) {
	var m models.RiskMetrics
	var err error
	if m.Correlation, err = Correlation(portfolio, benchmark); err != nil {
		return m, err
	}
	if m.Beta, err = Beta(portfolio, benchmark); err != nil {
		return m, err
	}
	if m.SharpeRatio, err = SharpeRatio(portfolio, riskFreeRate); err != nil {
		return m, err
	}
	if m.MaxDrawdown, err = MaxDrawdown(values); err != nil {
		return m, err
	}
	if m.StandardDeviation, err = StandardDeviation(portfolio); err != nil {
		return m, err
	}
	return m, nil
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// centred returns the mean and the sum of squared deviations from it
func centred(values []float64) (m, ss float64) {
	m = mean(values)
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return m, ss
}

func stddev(values []float64) float64 {
	_, ss := centred(values)
	return math.Sqrt(ss / float64(len(values)))
}

// CheckDrawdownSeries rejects value series MaxDrawdown cannot measure:
// negative entries or a zero starting peak
func CheckDrawdownSeries(values []float64) error {
	if err := checkSeries("max drawdown", values); err != nil {
		return err
	}
	for i, v := range values {
		if v < 0 {
			return models.InvalidInputf("max drawdown: negative value %g at index %d", v, i)
		}
	}
	if values[0] == 0 {
		return models.InvalidInputf("max drawdown: non-positive peak 0 at index 0")
	}
	return nil
}

func checkSeries(op string, values []float64) error {
	if len(values) == 0 {
		return models.InvalidInputf("%s: empty series", op)
	}
	for i, v := range values {
		if !finite(v) {
			return models.InvalidInputf("%s: non-finite value at index %d", op, i)
		}
	}
	return nil
}

func checkPair(op string, x, y []float64) error {
	if len(x) != len(y) {
		return models.InvalidInputf("%s: series lengths differ (%d vs %d)", op, len(x), len(y))
	}
	if err := checkSeries(op, x); err != nil {
		return err
	}
	return checkSeries(op, y)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
