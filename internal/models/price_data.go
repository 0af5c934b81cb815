package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceDataDaily represents daily OHLCV price data for a symbol
type PriceDataDaily struct {
	ID        int             `json:"id"`
	Symbol    string          `json:"symbol"`
	Date      time.Time       `json:"date"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	VWAP      decimal.Decimal `json:"vwap,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Closes extracts the close prices as a value series, preserving order
func Closes(prices []*PriceDataDaily) []float64 {
	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close.InexactFloat64()
	}
	return closes
}
