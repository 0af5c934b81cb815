package pricing

import "math"

// Abramowitz-Stegun 7.1.26 coefficients
const (
	asA1 = 0.254829592
	asA2 = -0.284496736
	asA3 = 1.421413741
	asA4 = -1.453152027
	asA5 = 1.061405429
	asP  = 0.3275911
)

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// NormCDF is the standard normal cumulative distribution function, using the
// Abramowitz-Stegun rational approximation (absolute error below 1.5e-7).
// NormCDF(x) + NormCDF(-x) is exactly 1.
func NormCDF(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	ax := math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + asP*ax)
	y := 1.0 - (((((asA5*t+asA4)*t)+asA3)*t+asA2)*t+asA1)*t*math.Exp(-ax*ax)

	return 0.5 * (1.0 + sign*y)
}

// NormPDF is the standard normal probability density function
func NormPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) * invSqrt2Pi
}
