package pricing

import (
	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// Moneyness labels
const (
	MoneynessITM = "ITM"
	MoneynessATM = "ATM"
	MoneynessOTM = "OTM"
)

// atmBand is the relative distance from the strike still treated as at the money
const atmBand = 0.05

// ChainEntry is the valuation of one strike in an option chain
type ChainEntry struct {
	Strike    float64             `json:"strike"`
	Moneyness string              `json:"moneyness"`
	Greeks    models.GreeksResult `json:"greeks"`
}

// ChainGreeks values the base contract at every strike, in input order
func ChainGreeks(base models.OptionContract, strikes []float64) ([]ChainEntry, error) {
	entries := make([]ChainEntry, 0, len(strikes))
	for _, k := range strikes {
		c := base
		c.StrikePrice = k
		g, err := PriceAndGreeks(c)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ChainEntry{
			Strike:    k,
			Moneyness: Moneyness(c),
			Greeks:    g,
		})
	}
	return entries, nil
}

// Moneyness classifies the contract as ITM, ATM or OTM
func Moneyness(c models.OptionContract) string {
	ratio := c.SpotPrice / c.StrikePrice
	if ratio >= 1-atmBand && ratio <= 1+atmBand {
		return MoneynessATM
	}
	itm := ratio > 1
	if c.Type == models.OptionPut {
		itm = !itm
	}
	if itm {
		return MoneynessITM
	}
	return MoneynessOTM
}
