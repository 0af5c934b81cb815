// Package accel is the accelerated compute backend. Series are split into
// chunks reduced in parallel, and holdings are columnised before the
// attribution kernels run. Partial results are always combined in chunk
// order so output is deterministic for a given configuration.
package accel

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/portfolio-analytics/internal/compute"
	"github.com/trogers1052/portfolio-analytics/internal/models"
	"github.com/trogers1052/portfolio-analytics/internal/riskstats"
)

// Name is the Name of the accelerated backend
const Name = "accelerated"

// DefaultChunkSize is the number of elements reduced by one task
const DefaultChunkSize = 4096

// Config tunes the kernels
type Config struct {
	Enabled   bool
	Workers   int
	ChunkSize int
}

// Backend implements compute.Backend with chunked parallel kernels
type Backend struct {
	workers   int
	chunkSize int
}

var _ compute.Backend = (*Backend)(nil)

// New creates a backend. Non-positive Workers uses GOMAXPROCS and
// non-positive ChunkSize uses DefaultChunkSize.
func New(cfg Config) *Backend {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &Backend{workers: workers, chunkSize: chunk}
}

func (b *Backend) Name() string { return Name }

// reduce splits [0, n) into chunks, runs kernel on each with its own
// accumulator of width k, and sums the accumulators in chunk order.
func (b *Backend) reduce(n, k int, kernel func(lo, hi int, acc []float64)) []float64 {
	chunks := (n + b.chunkSize - 1) / b.chunkSize
	if chunks <= 1 {
		acc := make([]float64, k)
		kernel(0, n, acc)
		return acc
	}

	partial := make([][]float64, chunks)
	var g errgroup.Group
	g.SetLimit(b.workers)
	for c := 0; c < chunks; c++ {
		g.Go(func() error {
			lo := c * b.chunkSize
			hi := min(lo+b.chunkSize, n)
			acc := make([]float64, k)
			kernel(lo, hi, acc)
			partial[c] = acc
			return nil
		})
	}
	_ = g.Wait()

	total := make([]float64, k)
	for _, acc := range partial {
		for j := range total {
			total[j] += acc[j]
		}
	}
	return total
}

// parallel runs kernel over every chunk of [0, n) for its side effects
func (b *Backend) parallel(n int, kernel func(lo, hi int)) {
	chunks := (n + b.chunkSize - 1) / b.chunkSize
	if chunks <= 1 {
		kernel(0, n)
		return
	}
	var g errgroup.Group
	g.SetLimit(b.workers)
	for c := 0; c < chunks; c++ {
		lo := c * b.chunkSize
		hi := min(lo+b.chunkSize, n)
		g.Go(func() error {
			kernel(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

func (b *Backend) sum(values []float64) float64 {
	return b.reduce(len(values), 1, func(lo, hi int, acc []float64) {
		for _, v := range values[lo:hi] {
			acc[0] += v
		}
	})[0]
}

func (b *Backend) mean(values []float64) float64 {
	return b.sum(values) / float64(len(values))
}

// moments returns the means and the centred sums Σdx·dy, Σdx², Σdy²
func (b *Backend) moments(x, y []float64) (mx, my, sxy, sxx, syy float64) {
	mx, my = b.mean(x), b.mean(y)
	acc := b.reduce(len(x), 3, func(lo, hi int, acc []float64) {
		for i := lo; i < hi; i++ {
			dx, dy := x[i]-mx, y[i]-my
			acc[0] += dx * dy
			acc[1] += dx * dx
			acc[2] += dy * dy
		}
	})
	return mx, my, acc[0], acc[1], acc[2]
}

// centred returns the mean and the sum of squared deviations from it
func (b *Backend) centred(values []float64) (m, ss float64) {
	m = b.mean(values)
	ss = b.reduce(len(values), 1, func(lo, hi int, acc []float64) {
		for _, v := range values[lo:hi] {
			d := v - m
			acc[0] += d * d
		}
	})[0]
	return m, ss
}

func (b *Backend) stddev(values []float64) float64 {
	_, ss := b.centred(values)
	return math.Sqrt(ss / float64(len(values)))
}

func (b *Backend) Correlation(x, y []float64) (float64, error) {
	if err := checkPair("correlation", x, y); err != nil {
		return 0, err
	}
	mx, my, sxy, sxx, syy := b.moments(x, y)
	if riskstats.ZeroVariance(x, mx, sxx) || riskstats.ZeroVariance(y, my, syy) {
		return riskstats.ZeroVarianceCorrelation, nil
	}
	return math.Max(-1, math.Min(1, sxy/math.Sqrt(sxx*syy))), nil
}

func (b *Backend) Beta(portfolio, benchmark []float64) (float64, error) {
	if err := checkPair("beta", portfolio, benchmark); err != nil {
		return 0, err
	}
	_, mb, cov, _, varB := b.moments(portfolio, benchmark)
	if riskstats.ZeroVariance(benchmark, mb, varB) {
		return riskstats.ZeroVarianceBeta, nil
	}
	return cov / varB, nil
}

func (b *Backend) SharpeRatio(returns []float64, riskFreeRate float64) (float64, error) {
	if err := checkSeries("sharpe ratio", returns); err != nil {
		return 0, err
	}
	if math.IsNaN(riskFreeRate) || math.IsInf(riskFreeRate, 0) {
		return 0, models.InvalidInputf("sharpe ratio: risk-free rate must be finite")
	}
	m, ss := b.centred(returns)
	if riskstats.ZeroVariance(returns, m, ss) {
		return riskstats.ZeroVarianceSharpe, nil
	}
	return (m - riskFreeRate) / math.Sqrt(ss/float64(len(returns))), nil
}

func (b *Backend) StandardDeviation(returns []float64) (float64, error) {
	if err := checkSeries("standard deviation", returns); err != nil {
		return 0, err
	}
	return b.stddev(returns), nil
}

// MaxDrawdown runs in two parallel passes: chunk maxima first, then the
// drawdown of each chunk against the peak carried into it.
func (b *Backend) MaxDrawdown(values []float64) (float64, error) {
	if err := riskstats.CheckDrawdownSeries(values); err != nil {
		return 0, err
	}

	n := len(values)
	chunks := (n + b.chunkSize - 1) / b.chunkSize
	chunkMax := make([]float64, chunks)
	b.parallel(n, func(lo, hi int) {
		m := values[lo]
		for _, v := range values[lo:hi] {
			m = math.Max(m, v)
		}
		chunkMax[lo/b.chunkSize] = m
	})

	entryPeak := make([]float64, chunks)
	peak := values[0]
	for c := range entryPeak {
		entryPeak[c] = peak
		peak = math.Max(peak, chunkMax[c])
	}

	chunkDD := make([]float64, chunks)
	b.parallel(n, func(lo, hi int) {
		peak := entryPeak[lo/b.chunkSize]
		dd := 0.0
		for _, v := range values[lo:hi] {
			if v > peak {
				peak = v
			}
			dd = math.Max(dd, (peak-v)/peak)
		}
		chunkDD[lo/b.chunkSize] = dd
	})

	maxDD := 0.0
	for _, dd := range chunkDD {
		maxDD = math.Max(maxDD, dd)
	}
	return maxDD, nil
}

func checkSeries(op string, values []float64) error {
	if len(values) == 0 {
		return models.InvalidInputf("%s: empty series", op)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
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
