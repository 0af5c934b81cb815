package models

import "time"

// RiskSnapshot is a persisted set of risk metrics for a symbol against a benchmark
type RiskSnapshot struct {
	ID           int         `json:"id"`
	Symbol       string      `json:"symbol"`
	Benchmark    string      `json:"benchmark"`
	PeriodStart  time.Time   `json:"period_start"`
	PeriodEnd    time.Time   `json:"period_end"`
	RiskFreeRate float64     `json:"risk_free_rate"`
	Observations int         `json:"observations"`
	Metrics      RiskMetrics `json:"metrics"`
	Backend      string      `json:"backend"`
	CreatedAt    time.Time   `json:"created_at"`
}

// AttributionSnapshot is a persisted attribution run
type AttributionSnapshot struct {
	ID           int                  `json:"id"`
	Source       string               `json:"source"`
	TotalValue   float64              `json:"total_value"`
	HoldingCount int                  `json:"holding_count"`
	Attribution  PortfolioAttribution `json:"attribution"`
	CapturedAt   time.Time            `json:"captured_at"`
}
