package attribution

import (
	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// BrinsonFachler splits the excess return of a segment into allocation,
// selection and interaction effects. Results are not rounded.
func BrinsonFachler(portfolioWeight, benchmarkWeight, portfolioReturn, benchmarkReturn float64) models.BrinsonResult {
	activeWeight := portfolioWeight - benchmarkWeight
	activeReturn := portfolioReturn - benchmarkReturn

	r := models.BrinsonResult{
		Allocation:  activeWeight * benchmarkReturn,
		Selection:   portfolioWeight * activeReturn,
		Interaction: activeWeight * activeReturn,
	}
	r.Total = r.Allocation + r.Selection + r.Interaction
	return r
}
