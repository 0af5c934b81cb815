package models

// AttributionRecord is the attribution of one holding, sector or asset class.
// Weight, Return and Contribution are percentages.
type AttributionRecord struct {
	Key                 string  `json:"key"`
	Weight              float64 `json:"weight"`
	Return              float64 `json:"return"`
	Contribution        float64 `json:"contribution"`
	ContributionPercent float64 `json:"contribution_percent"`
	ValueStart          float64 `json:"value_start"`
	ValueEnd            float64 `json:"value_end"`
	ValueChange         float64 `json:"value_change"`
	HoldingsCount       int     `json:"holdings_count"`

	// Sector records only: the member with the largest contribution
	TopHolding       string  `json:"top_holding,omitempty"`
	TopHoldingReturn float64 `json:"top_holding_return,omitempty"`

	// Asset class records only: distinct sectors among the members
	SectorsCount int `json:"sectors_count,omitempty"`
}

// AttributionSummary highlights the extremes of an attribution run
type AttributionSummary struct {
	TotalContribution float64            `json:"total_contribution"`
	TopContributor    *AttributionRecord `json:"top_contributor,omitempty"`
	BottomContributor *AttributionRecord `json:"bottom_contributor,omitempty"`
	BestSector        *AttributionRecord `json:"best_sector,omitempty"`
	WorstSector       *AttributionRecord `json:"worst_sector,omitempty"`
	BestAssetClass    *AttributionRecord `json:"best_asset_class,omitempty"`
	WorstAssetClass   *AttributionRecord `json:"worst_asset_class,omitempty"`
	PositiveHoldings  int                `json:"positive_holdings"`
	NegativeHoldings  int                `json:"negative_holdings"`
	NeutralHoldings   int                `json:"neutral_holdings"`
}

// BenchmarkComparison sets a portfolio return against a benchmark scaled to
// the same period. Returns are percentages.
type BenchmarkComparison struct {
	Period                 string              `json:"period"`
	PortfolioReturn        float64             `json:"portfolio_return"`
	BenchmarkReturn        float64             `json:"benchmark_return"`
	ExcessReturn           float64             `json:"excess_return"`
	ExcessReturnPercent    float64             `json:"excess_return_percent"`
	SectorOutperformance   []AttributionRecord `json:"sector_outperformance"`
	SectorUnderperformance []AttributionRecord `json:"sector_underperformance"`
}

// BrinsonResult is a Brinson-Fachler decomposition.
// Total is always Allocation + Selection + Interaction.
type BrinsonResult struct {
	Allocation  float64 `json:"allocation"`
	Selection   float64 `json:"selection"`
	Interaction float64 `json:"interaction"`
	Total       float64 `json:"total"`
}

// PortfolioAttribution bundles every attribution level for one snapshot
type PortfolioAttribution struct {
	TotalValue   float64             `json:"total_value"`
	Holdings     []AttributionRecord `json:"holdings"`
	Sectors      []AttributionRecord `json:"sectors"`
	AssetClasses []AttributionRecord `json:"asset_classes"`
	Summary      AttributionSummary  `json:"summary"`
}

// RiskMetrics are the scalar risk statistics of a return series
type RiskMetrics struct {
	Correlation       float64 `json:"correlation"`
	Beta              float64 `json:"beta"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	StandardDeviation float64 `json:"standard_deviation"`
}
