// Package pricing values European options under Black-Scholes-Merton with a
// continuous dividend yield and derives the full Greeks surface.
//
// All functions are pure. Contracts with zero expiry or zero volatility are
// accepted and produce NaN or Inf in the affected outputs; sanitising those
// inputs is the caller's job.
package pricing

import (
	"math"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

const (
	daysPerYear     = 365.0
	percentageScale = 100.0
)

// terms holds the intermediate quantities shared by price and Greeks
type terms struct {
	s, k, t, sigma, r, q float64
	sqrtT                float64
	d1, d2               float64
	pdfD1                float64
	discQ, discR         float64
}

func newTerms(c models.OptionContract) terms {
	tm := terms{
		s:     c.SpotPrice,
		k:     c.StrikePrice,
		t:     c.TimeToExpiry,
		sigma: c.Volatility,
		r:     c.RiskFreeRate,
		q:     c.DividendYield,
	}
	tm.sqrtT = math.Sqrt(tm.t)
	volSqrtT := tm.sigma * tm.sqrtT
	tm.d1 = (math.Log(tm.s/tm.k) + (tm.r-tm.q+0.5*tm.sigma*tm.sigma)*tm.t) / volSqrtT
	tm.d2 = tm.d1 - volSqrtT
	tm.pdfD1 = NormPDF(tm.d1)
	tm.discQ = math.Exp(-tm.q * tm.t)
	tm.discR = math.Exp(-tm.r * tm.t)
	return tm
}

// PriceAndGreeks values the contract and returns its Greeks surface
func PriceAndGreeks(c models.OptionContract) (models.GreeksResult, error) {
	if err := c.Validate(); err != nil {
		return models.GreeksResult{}, err
	}
	tm := newTerms(c)

	var res models.GreeksResult
	res.D1 = tm.d1
	res.D2 = tm.d2

	volSqrtT := tm.sigma * tm.sqrtT
	decay := -tm.s * tm.discQ * tm.pdfD1 * tm.sigma / (2 * tm.sqrtT)
	// shared factor of charm and color
	drift := (2*(tm.r-tm.q)*tm.t - tm.d2*volSqrtT) / (2 * tm.t * volSqrtT)

	switch c.Type {
	case models.OptionCall:
		nd1 := NormCDF(tm.d1)
		nd2 := NormCDF(tm.d2)
		res.BlackScholesPrice = tm.s*tm.discQ*nd1 - tm.k*tm.discR*nd2
		res.Delta = tm.discQ * nd1
		res.Theta = (decay - tm.r*tm.k*tm.discR*nd2 + tm.q*tm.s*tm.discQ*nd1) / daysPerYear
		res.Rho = tm.k * tm.t * tm.discR * nd2 / percentageScale
		res.Charm = (tm.q*tm.discQ*nd1 - tm.discQ*tm.pdfD1*drift) / daysPerYear
		res.IntrinsicValue = math.Max(0, tm.s*tm.discQ-tm.k*tm.discR)
		res.ProbabilityITM = nd2
	case models.OptionPut:
		nmd1 := NormCDF(-tm.d1)
		nmd2 := NormCDF(-tm.d2)
		res.BlackScholesPrice = tm.k*tm.discR*nmd2 - tm.s*tm.discQ*nmd1
		res.Delta = -tm.discQ * nmd1
		res.Theta = (decay + tm.r*tm.k*tm.discR*nmd2 - tm.q*tm.s*tm.discQ*nmd1) / daysPerYear
		res.Rho = -tm.k * tm.t * tm.discR * nmd2 / percentageScale
		res.Charm = (-tm.q*tm.discQ*nmd1 - tm.discQ*tm.pdfD1*drift) / daysPerYear
		res.IntrinsicValue = math.Max(0, tm.k*tm.discR-tm.s*tm.discQ)
		res.ProbabilityITM = nmd2
	}

	rawVega := tm.s * tm.discQ * tm.pdfD1 * tm.sqrtT
	res.Gamma = tm.discQ * tm.pdfD1 / (tm.s * volSqrtT)
	res.Vega = rawVega / percentageScale
	res.Vanna = -tm.discQ * tm.pdfD1 * tm.d2 / tm.sigma
	res.Vomma = rawVega * tm.d1 * tm.d2 / tm.sigma
	res.Speed = -res.Gamma / tm.s * (tm.d1/volSqrtT + 1)
	res.Zomma = res.Gamma * (tm.d1*tm.d2 - 1) / tm.sigma
	res.Color = -tm.discQ * tm.pdfD1 / (2 * tm.s * tm.t * volSqrtT) *
		(2*tm.q*tm.t + 1 + tm.d1*(2*(tm.r-tm.q)*tm.t-tm.d2*volSqrtT)/volSqrtT) / daysPerYear
	res.DVegaDTime = -tm.s * tm.discQ * tm.pdfD1 * tm.sqrtT *
		(tm.q + (tm.r-tm.q)*tm.d1/volSqrtT - (1+tm.d1*tm.d2)/(2*tm.t))

	res.TimeValue = math.Max(0, res.BlackScholesPrice-res.IntrinsicValue)
	res.Breakeven = breakeven(c.Type, tm.k, res.BlackScholesPrice)

	return res, nil
}

// Price returns only the Black-Scholes-Merton value of the contract
func Price(c models.OptionContract) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	return price(newTerms(c), c.Type), nil
}

func price(tm terms, typ models.OptionType) float64 {
	if typ == models.OptionPut {
		return tm.k*tm.discR*NormCDF(-tm.d2) - tm.s*tm.discQ*NormCDF(-tm.d1)
	}
	return tm.s*tm.discQ*NormCDF(tm.d1) - tm.k*tm.discR*NormCDF(tm.d2)
}

func breakeven(typ models.OptionType, strike, premium float64) float64 {
	if typ == models.OptionPut {
		return strike - premium
	}
	return strike + premium
}
