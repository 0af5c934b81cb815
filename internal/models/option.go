package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// OptionType is either a call or a put
type OptionType int

const (
	OptionCall OptionType = iota
	OptionPut
)

// String returns the lowercase wire name of the option type
func (t OptionType) String() string {
	switch t {
	case OptionCall:
		return "call"
	case OptionPut:
		return "put"
	default:
		return fmt.Sprintf("OptionType(%d)", int(t))
	}
}

// ParseOptionType accepts "call" or "put" in any case
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return OptionCall, nil
	case "put":
		return OptionPut, nil
	default:
		return 0, InvalidInputf("option type must be call or put, got %q", s)
	}
}

// MarshalJSON encodes the option type as "call" or "put"
func (t OptionType) MarshalJSON() ([]byte, error) {
	if t != OptionCall && t != OptionPut {
		return nil, InvalidInputf("unknown option type %d", int(t))
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "call" or "put"
func (t *OptionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return InvalidInputf("option type must be a string")
	}
	parsed, err := ParseOptionType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// OptionContract holds the inputs to a Black-Scholes-Merton valuation.
// Rates and volatility are decimals (0.05 = 5%), time is in years.
type OptionContract struct {
	SpotPrice     float64    `json:"spot_price"`
	StrikePrice   float64    `json:"strike_price"`
	TimeToExpiry  float64    `json:"time_to_expiry"`
	Volatility    float64    `json:"volatility"`
	RiskFreeRate  float64    `json:"risk_free_rate"`
	DividendYield float64    `json:"dividend_yield"`
	Type          OptionType `json:"option_type"`
}

// Validate checks the contract invariants. Zero expiry and zero volatility
// are allowed; the pricing formulas surface them as NaN or Inf.
func (c OptionContract) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"spot_price", c.SpotPrice},
		{"strike_price", c.StrikePrice},
		{"time_to_expiry", c.TimeToExpiry},
		{"volatility", c.Volatility},
		{"risk_free_rate", c.RiskFreeRate},
		{"dividend_yield", c.DividendYield},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return InvalidInputf("%s must be finite", f.name)
		}
	}
	if c.SpotPrice <= 0 {
		return InvalidInputf("spot_price must be positive, got %g", c.SpotPrice)
	}
	if c.StrikePrice <= 0 {
		return InvalidInputf("strike_price must be positive, got %g", c.StrikePrice)
	}
	if c.TimeToExpiry < 0 {
		return InvalidInputf("time_to_expiry must not be negative, got %g", c.TimeToExpiry)
	}
	if c.Volatility < 0 {
		return InvalidInputf("volatility must not be negative, got %g", c.Volatility)
	}
	if c.Type != OptionCall && c.Type != OptionPut {
		return InvalidInputf("unknown option type %d", int(c.Type))
	}
	return nil
}

// GreeksResult is the full valuation of a single contract.
// Theta, charm and color are per calendar day; vega and rho per 1 percentage point.
type GreeksResult struct {
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Theta             float64 `json:"theta"`
	Vega              float64 `json:"vega"`
	Rho               float64 `json:"rho"`
	Vanna             float64 `json:"vanna"`
	Charm             float64 `json:"charm"`
	Speed             float64 `json:"speed"`
	Zomma             float64 `json:"zomma"`
	Color             float64 `json:"color"`
	Vomma             float64 `json:"vomma"` // also called volga or vor: sensitivity of vega to volatility
	DVegaDTime        float64 `json:"dvega_dtime"`
	BlackScholesPrice float64 `json:"black_scholes_price"`
	IntrinsicValue    float64 `json:"intrinsic_value"`
	TimeValue         float64 `json:"time_value"`
	Breakeven         float64 `json:"breakeven"`
	ProbabilityITM    float64 `json:"probability_itm"`
	D1                float64 `json:"d1"`
	D2                float64 `json:"d2"`
}
