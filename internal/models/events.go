package models

import "time"

// Event types carried on the positions and analytics topics
const (
	EventPositionsSnapshot  = "POSITIONS_SNAPSHOT"
	EventAttributionUpdated = "ATTRIBUTION_UPDATED"
	EventRiskMetricsUpdated = "RISK_METRICS_UPDATED"
)

// PositionsEvent is a broker snapshot of every open position
type PositionsEvent struct {
	EventType string             `json:"event_type"`
	Source    string             `json:"source"`
	Timestamp string             `json:"timestamp"`
	Data      PositionsEventData `json:"data"`
}

// PositionsEventData is the payload of a positions snapshot
type PositionsEventData struct {
	BuyingPower string         `json:"buying_power,omitempty"`
	Positions   []PositionData `json:"positions"`
}

// PositionData is one position as reported by the broker. Numbers arrive as strings.
type PositionData struct {
	Symbol          string `json:"symbol"`
	Name            string `json:"name,omitempty"`
	Quantity        string `json:"quantity"`
	AverageBuyPrice string `json:"average_buy_price"`
	CurrentPrice    string `json:"current_price,omitempty"`
	Equity          string `json:"equity,omitempty"`
	PercentChange   string `json:"percent_change,omitempty"`
	Sector          string `json:"sector,omitempty"`
	AssetClass      string `json:"asset_class,omitempty"`
}

// AnalyticsEvent is published after analytics are recomputed
type AnalyticsEvent struct {
	EventType   string                `json:"event_type"`
	Key         string                `json:"key"`
	Attribution *PortfolioAttribution `json:"attribution,omitempty"`
	Risk        *RiskSnapshot         `json:"risk,omitempty"`
	Timestamp   time.Time             `json:"timestamp"`
}
