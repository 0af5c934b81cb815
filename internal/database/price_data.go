package database

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

const priceDataColumns = `id, symbol, date, open, high, low, close, volume, vwap, created_at`

const upsertPriceDataQuery = `
	INSERT INTO price_data_daily (symbol, date, open, high, low, close, volume, vwap, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (symbol, date) DO UPDATE
	SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		close = EXCLUDED.close, volume = EXCLUDED.volume, vwap = EXCLUDED.vwap
`

// CreatePriceDataBatch upserts daily bars. Either every bar is stored or none.
func (db *DB) CreatePriceDataBatch(prices []*models.PriceDataDaily) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertPriceDataQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare price upsert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now()
	for _, p := range prices {
		var vwap interface{}
		if !p.VWAP.IsZero() {
			vwap = p.VWAP
		}
		if _, err := stmt.Exec(p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, vwap, createdAt); err != nil {
			return fmt.Errorf("failed to upsert %s bar for %s: %w", p.Symbol, p.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price data: %w", err)
	}
	return nil
}

// GetPriceDataRange returns the bars for symbol between the dates inclusive, oldest first
func (db *DB) GetPriceDataRange(symbol string, startDate, endDate time.Time) ([]*models.PriceDataDaily, error) {
	rows, err := db.conn.Query(
		`SELECT `+priceDataColumns+` FROM price_data_daily
		WHERE symbol = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`,
		symbol, startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query price data for %s: %w", symbol, err)
	}
	defer rows.Close()

	var prices []*models.PriceDataDaily
	for rows.Next() {
		p, err := scanPriceData(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price data: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price data: %w", err)
	}
	return prices, nil
}

// GetCloseSeries returns the closing prices for symbol between the dates, oldest first
func (db *DB) GetCloseSeries(symbol string, startDate, endDate time.Time) ([]float64, error) {
	rows, err := db.conn.Query(
		`SELECT close FROM price_data_daily
		WHERE symbol = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`,
		symbol, startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c decimal.Decimal
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		closes = append(closes, c.InexactFloat64())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate closes: %w", err)
	}
	return closes, nil
}

func scanPriceData(s scanner) (*models.PriceDataDaily, error) {
	var p models.PriceDataDaily
	var vwap decimal.NullDecimal
	err := s.Scan(&p.ID, &p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume, &vwap, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if vwap.Valid {
		p.VWAP = vwap.Decimal
	}
	return &p, nil
}
