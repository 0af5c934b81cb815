package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/trogers1052/portfolio-analytics/internal/models"
	"github.com/trogers1052/portfolio-analytics/internal/riskstats"
)

// ErrNoConvergence is returned when implied volatility cannot be solved
var ErrNoConvergence = errors.New("implied volatility did not converge")

const (
	ivTolerance     = 1e-6
	ivMaxIterations = 100
	ivInitialGuess  = 0.3
	ivFloor         = 0.001
	ivLower         = 1e-4
	ivUpper         = 5.0
	tradingDays     = 252.0
)

// ImpliedVolatility solves for the volatility that reproduces the observed
// premium. The contract's own Volatility field is ignored. Newton steps on
// vega are used while they stay inside the bracket, bisection otherwise.
func ImpliedVolatility(premium float64, c models.OptionContract) (float64, error) {
	c.Volatility = ivInitialGuess
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if c.TimeToExpiry == 0 {
		return 0, models.InvalidInputf("time_to_expiry must be positive to solve implied volatility")
	}
	if math.IsNaN(premium) || math.IsInf(premium, 0) || premium <= 0 {
		return 0, models.InvalidInputf("premium must be positive, got %g", premium)
	}

	lo, hi := ivLower, ivUpper
	sigma := ivInitialGuess
	for i := 0; i < ivMaxIterations; i++ {
		c.Volatility = sigma
		tm := newTerms(c)
		diff := price(tm, c.Type) - premium
		if math.Abs(diff) < ivTolerance {
			return math.Max(sigma, ivFloor), nil
		}
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}

		vega := tm.s * tm.discQ * tm.pdfD1 * tm.sqrtT
		next := sigma - diff/vega
		if vega < 1e-12 || math.IsNaN(next) || next <= lo || next >= hi {
			next = 0.5 * (lo + hi)
		}
		if math.Abs(next-sigma) < 1e-12 {
			break
		}
		sigma = next
	}
	return 0, fmt.Errorf("%w after %d iterations", ErrNoConvergence, ivMaxIterations)
}

// HistoricalVolatility annualises the population standard deviation of
// log returns of a price series
func HistoricalVolatility(prices []float64) (float64, error) {
	if len(prices) < 2 {
		return 0, models.InvalidInputf("historical volatility needs at least 2 prices, got %d", len(prices))
	}
	logReturns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			return 0, models.InvalidInputf("prices must be positive at index %d", i)
		}
		logReturns = append(logReturns, math.Log(prices[i]/prices[i-1]))
	}

	sd, err := riskstats.StandardDeviation(logReturns)
	if err != nil {
		return 0, err
	}
	return sd * math.Sqrt(tradingDays), nil
}

// TimeToExpiry converts an expiry timestamp into years, floored at one day
func TimeToExpiry(now, expiry time.Time) float64 {
	years := expiry.Sub(now).Hours() / 24 / daysPerYear
	return math.Max(years, 1/daysPerYear)
}
