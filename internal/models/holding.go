package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// UncategorizedSector is the group used for holdings without a sector
const UncategorizedSector = "Uncategorized"

// AssetClass identifies the broad category of a holding
type AssetClass string

// Known asset classes
const (
	AssetClassEquity      AssetClass = "equity"
	AssetClassETF         AssetClass = "etf"
	AssetClassFixedIncome AssetClass = "fixed_income"
	AssetClassCrypto      AssetClass = "crypto"
	AssetClassCash        AssetClass = "cash"
	AssetClassCommodity   AssetClass = "commodity"
	AssetClassOption      AssetClass = "option"
	AssetClassOther       AssetClass = "other"
)

// Holding is a valuation snapshot of one position. It is derived upstream
// and treated as immutable by the analytics core.
type Holding struct {
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name,omitempty"`
	Quantity      float64    `json:"quantity"`
	AverageCost   float64    `json:"average_cost"`
	CurrentPrice  float64    `json:"current_price"`
	CurrentValue  float64    `json:"current_value"`
	UnrealizedPnl float64    `json:"unrealized_pnl"`
	Sector        string     `json:"sector,omitempty"`
	AssetClass    AssetClass `json:"asset_class"`
}

// SectorOrDefault returns the sector, or UncategorizedSector when unset
func (h Holding) SectorOrDefault() string {
	if h.Sector == "" {
		return UncategorizedSector
	}
	return h.Sector
}

// Validate rejects non-finite or negative valuation fields
func (h Holding) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"quantity", h.Quantity},
		{"average_cost", h.AverageCost},
		{"current_price", h.CurrentPrice},
		{"current_value", h.CurrentValue},
		{"unrealized_pnl", h.UnrealizedPnl},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return InvalidInputf("holding %s: %s must be finite", h.Symbol, f.name)
		}
	}
	if h.AverageCost < 0 {
		return InvalidInputf("holding %s: average_cost must not be negative", h.Symbol)
	}
	if h.CurrentPrice < 0 {
		return InvalidInputf("holding %s: current_price must not be negative", h.Symbol)
	}
	if h.CurrentValue < 0 {
		return InvalidInputf("holding %s: current_value must not be negative", h.Symbol)
	}
	return nil
}

// HoldingRow is the persisted form of a holding
type HoldingRow struct {
	ID           int             `json:"id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Sector       string          `json:"sector,omitempty"`
	AssetClass   AssetClass      `json:"asset_class"`
	AsOf         time.Time       `json:"as_of"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToHolding derives the valuation snapshot used by the analytics core
func (r *HoldingRow) ToHolding() Holding {
	value := r.Quantity.Mul(r.CurrentPrice)
	pnl := value.Sub(r.Quantity.Mul(r.AverageCost))
	return Holding{
		Symbol:        r.Symbol,
		Name:          r.Name,
		Quantity:      r.Quantity.InexactFloat64(),
		AverageCost:   r.AverageCost.InexactFloat64(),
		CurrentPrice:  r.CurrentPrice.InexactFloat64(),
		CurrentValue:  value.InexactFloat64(),
		UnrealizedPnl: pnl.InexactFloat64(),
		Sector:        r.Sector,
		AssetClass:    r.AssetClass,
	}
}

// HoldingsFromRows converts persisted rows, preserving order
func HoldingsFromRows(rows []*HoldingRow) []Holding {
	holdings := make([]Holding, 0, len(rows))
	for _, r := range rows {
		holdings = append(holdings, r.ToHolding())
	}
	return holdings
}
