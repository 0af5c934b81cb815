package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// CreateRiskSnapshot stores a computed set of risk metrics
func (db *DB) CreateRiskSnapshot(s *models.RiskSnapshot) error {
	query := `
		INSERT INTO risk_snapshots (
			symbol, benchmark, period_start, period_end, risk_free_rate, observations,
			correlation, beta, sharpe_ratio, max_drawdown, standard_deviation, backend, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	s.CreatedAt = time.Now()
	err := db.conn.QueryRow(query,
		s.Symbol, s.Benchmark, s.PeriodStart, s.PeriodEnd, s.RiskFreeRate, s.Observations,
		s.Metrics.Correlation, s.Metrics.Beta, s.Metrics.SharpeRatio, s.Metrics.MaxDrawdown, s.Metrics.StandardDeviation,
		s.Backend, s.CreatedAt,
	).Scan(&s.ID)

	if err != nil {
		return fmt.Errorf("failed to create risk snapshot: %w", err)
	}
	return nil
}

// GetLatestRiskSnapshot returns the most recent snapshot for symbol against benchmark
func (db *DB) GetLatestRiskSnapshot(symbol, benchmark string) (*models.RiskSnapshot, error) {
	query := `
		SELECT id, symbol, benchmark, period_start, period_end, risk_free_rate, observations,
			correlation, beta, sharpe_ratio, max_drawdown, standard_deviation, backend, created_at
		FROM risk_snapshots
		WHERE symbol = $1 AND benchmark = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var s models.RiskSnapshot
	err := db.conn.QueryRow(query, symbol, benchmark).Scan(
		&s.ID, &s.Symbol, &s.Benchmark, &s.PeriodStart, &s.PeriodEnd, &s.RiskFreeRate, &s.Observations,
		&s.Metrics.Correlation, &s.Metrics.Beta, &s.Metrics.SharpeRatio, &s.Metrics.MaxDrawdown, &s.Metrics.StandardDeviation,
		&s.Backend, &s.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("risk snapshot for %s vs %s: %w", symbol, benchmark, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk snapshot: %w", err)
	}
	return &s, nil
}
