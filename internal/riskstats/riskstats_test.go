package riskstats

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-analytics/internal/models"
)

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func randomSeries(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * 0.02
	}
	return out
}

func TestCorrelation(t *testing.T) {
	t.Run("symmetric and self correlation is one", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < 100; i++ {
			n := 2 + rng.Intn(200)
			x, y := randomSeries(rng, n), randomSeries(rng, n)

			xy, err := Correlation(x, y)
			require.NoError(t, err)
			yx, err := Correlation(y, x)
			require.NoError(t, err)
			assert.Equal(t, xy, yx)
			assert.True(t, xy >= -1 && xy <= 1)

			xx, err := Correlation(x, x)
			require.NoError(t, err)
			assert.InDelta(t, 1, xx, 1e-12)
		}
	})

	t.Run("perfectly anti-correlated", func(t *testing.T) {
		c, err := Correlation([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
		require.NoError(t, err)
		assert.InDelta(t, -1, c, 1e-12)
	})

	t.Run("constant series falls back to zero", func(t *testing.T) {
		c, err := Correlation([]float64{1, 2, 3}, []float64{5, 5, 5})
		require.NoError(t, err)
		assert.Equal(t, 0.0, c)
	})

	t.Run("constant of inexact decimals falls back to zero", func(t *testing.T) {
		rng := rand.New(rand.NewSource(5))
		for _, v := range []float64{0.1, 0.07, 0.003} {
			for _, n := range []int{3, 10, 100} {
				c, err := Correlation(randomSeries(rng, n), repeat(v, n))
				require.NoError(t, err)
				assert.Equal(t, 0.0, c, "value %g n %d", v, n)

				c, err = Correlation(repeat(v, n), repeat(v, n))
				require.NoError(t, err)
				assert.Equal(t, 0.0, c, "value %g n %d", v, n)
			}
		}
	})
}

func TestBeta(t *testing.T) {
	t.Run("scaled benchmark", func(t *testing.T) {
		b := []float64{0.01, -0.02, 0.015, 0.005}
		p := make([]float64, len(b))
		for i := range b {
			p[i] = 1.5*b[i] + 0.001
		}
		beta, err := Beta(p, b)
		require.NoError(t, err)
		assert.InDelta(t, 1.5, beta, 1e-12)
	})

	t.Run("constant benchmark falls back to one", func(t *testing.T) {
		beta, err := Beta([]float64{0.1, 0.2}, []float64{0.01, 0.01})
		require.NoError(t, err)
		assert.Equal(t, 1.0, beta)
	})

	t.Run("constant benchmark of inexact decimals falls back to one", func(t *testing.T) {
		rng := rand.New(rand.NewSource(6))
		for _, v := range []float64{0.1, 0.07, 0.003} {
			for _, n := range []int{3, 10, 100} {
				beta, err := Beta(randomSeries(rng, n), repeat(v, n))
				require.NoError(t, err)
				assert.Equal(t, 1.0, beta, "value %g n %d", v, n)
			}
		}
	})
}

func TestSharpeRatio(t *testing.T) {
	s, err := SharpeRatio([]float64{0.1, 0.3}, 0.05)
	require.NoError(t, err)
	// mean 0.2, population stddev 0.1
	assert.InDelta(t, 1.5, s, 1e-12)

	s, err = SharpeRatio([]float64{0.5, 0.5, 0.5}, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	_, err = SharpeRatio([]float64{0.1}, math.Inf(1))
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	for _, v := range []float64{0.1, 0.07, 0.003} {
		for _, n := range []int{3, 10, 100} {
			s, err = SharpeRatio(repeat(v, n), 0)
			require.NoError(t, err)
			assert.Equal(t, 0.0, s, "value %g n %d", v, n)
		}
	}
}

func TestZeroVariance(t *testing.T) {
	t.Run("identical elements", func(t *testing.T) {
		values := repeat(0.1, 10)
		m, ss := centred(values)
		assert.True(t, ZeroVariance(values, m, ss))
	})

	t.Run("rounding noise around the mean", func(t *testing.T) {
		values := repeat(0.07, 50)
		values[17] = math.Nextafter(0.07, 1)
		m, ss := centred(values)
		assert.True(t, ZeroVariance(values, m, ss))
	})

	t.Run("real spread", func(t *testing.T) {
		values := []float64{0.1, 0.1, 0.1000001}
		m, ss := centred(values)
		assert.False(t, ZeroVariance(values, m, ss))

		rng := rand.New(rand.NewSource(7))
		values = randomSeries(rng, 30)
		m, ss = centred(values)
		assert.False(t, ZeroVariance(values, m, ss))
	})
}

func TestMaxDrawdown(t *testing.T) {
	t.Run("running peak", func(t *testing.T) {
		dd, err := MaxDrawdown([]float64{100, 120, 90, 110, 60, 130})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, dd, 1e-12)
	})

	t.Run("non-decreasing series has no drawdown", func(t *testing.T) {
		rng := rand.New(rand.NewSource(3))
		for i := 0; i < 50; i++ {
			values := make([]float64, 1+rng.Intn(100))
			for j := range values {
				values[j] = 1 + rng.Float64()*1000
			}
			sort.Float64s(values)
			dd, err := MaxDrawdown(values)
			require.NoError(t, err)
			assert.Equal(t, 0.0, dd)
		}
	})

	t.Run("never negative", func(t *testing.T) {
		rng := rand.New(rand.NewSource(4))
		for i := 0; i < 50; i++ {
			values := make([]float64, 1+rng.Intn(100))
			for j := range values {
				values[j] = 1 + rng.Float64()*1000
			}
			dd, err := MaxDrawdown(values)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, dd, 0.0)
			assert.LessOrEqual(t, dd, 1.0)
		}
	})

	t.Run("single value", func(t *testing.T) {
		dd, err := MaxDrawdown([]float64{42})
		require.NoError(t, err)
		assert.Equal(t, 0.0, dd)
	})

	t.Run("non-positive peak is rejected", func(t *testing.T) {
		_, err := MaxDrawdown([]float64{-5, -10})
		assert.True(t, errors.Is(err, models.ErrInvalidInput))

		_, err = MaxDrawdown([]float64{0, 10})
		assert.True(t, errors.Is(err, models.ErrInvalidInput))
	})

	t.Run("negative value after a positive peak is rejected", func(t *testing.T) {
		_, err := MaxDrawdown([]float64{100, 120, -30})
		assert.True(t, errors.Is(err, models.ErrInvalidInput))
	})

	t.Run("drop to zero is a full drawdown", func(t *testing.T) {
		dd, err := MaxDrawdown([]float64{100, 120, 0})
		require.NoError(t, err)
		assert.Equal(t, 1.0, dd)
	})
}

func TestStandardDeviation(t *testing.T) {
	sd, err := StandardDeviation([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)
	assert.InDelta(t, 2, sd, 1e-12)

	sd, err = StandardDeviation([]float64{3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sd)
}

func TestInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		call func() error
	}{
		{"empty correlation", func() error { _, err := Correlation(nil, nil); return err }},
		{"mismatched correlation", func() error { _, err := Correlation([]float64{1, 2}, []float64{1}); return err }},
		{"mismatched beta", func() error { _, err := Beta([]float64{1}, []float64{1, 2}); return err }},
		{"nan in beta", func() error { _, err := Beta([]float64{1, math.NaN()}, []float64{1, 2}); return err }},
		{"empty sharpe", func() error { _, err := SharpeRatio(nil, 0); return err }},
		{"empty drawdown", func() error { _, err := MaxDrawdown(nil); return err }},
		{"infinite stddev", func() error { _, err := StandardDeviation([]float64{math.Inf(-1)}); return err }},
		{"empty mean", func() error { _, err := Mean(nil); return err }},
		{"short returns", func() error { _, err := Returns([]float64{1}); return err }},
		{"zero in returns", func() error { _, err := Returns([]float64{1, 0, 2}); return err }},
		{"ema alpha", func() error { _, err := ExponentialMovingAverage([]float64{1}, 0); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.call(), models.ErrInvalidInput))
		})
	}
}

func TestHelpers(t *testing.T) {
	m, err := Mean([]float64{1, 2, 3, 6})
	require.NoError(t, err)
	assert.Equal(t, 3.0, m)

	cov, err := Covariance([]float64{1, 2, 3}, []float64{2, 4, 6})
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, cov, 1e-12)

	r, err := Returns([]float64{100, 110, 99})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.1, -0.1}, r, 1e-12)

	ema, err := ExponentialMovingAverage([]float64{10, 20, 30}, 0.5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10, 15, 22.5}, ema, 1e-12)
}

func TestCompute(t *testing.T) {
	values := []float64{100, 102, 101, 105, 103}
	portfolio, err := Returns(values)
	require.NoError(t, err)
	benchmark := []float64{0.01, -0.005, 0.03, -0.01}

	m, err := Compute(portfolio, benchmark, values, 0)
	require.NoError(t, err)

	c, _ := Correlation(portfolio, benchmark)
	dd, _ := MaxDrawdown(values)
	assert.Equal(t, c, m.Correlation)
	assert.Equal(t, dd, m.MaxDrawdown)
	assert.Greater(t, m.StandardDeviation, 0.0)

	_, err = Compute(portfolio, benchmark[:2], values, 0)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}
