package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

const holdingColumns = `id, symbol, name, quantity, average_cost, current_price, sector, asset_class, as_of, created_at, updated_at`

// ReplaceAllHoldings swaps the stored holdings for rows in one transaction.
// IDs and timestamps are set on the rows.
func (db *DB) ReplaceAllHoldings(rows []*models.HoldingRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM holdings`); err != nil {
		return fmt.Errorf("failed to delete existing holdings: %w", err)
	}

	query := `
		INSERT INTO holdings (symbol, name, quantity, average_cost, current_price, sector, asset_class, as_of, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	now := time.Now()
	for _, h := range rows {
		if h.AsOf.IsZero() {
			h.AsOf = now
		}
		err := tx.QueryRow(query,
			h.Symbol, h.Name, h.Quantity, h.AverageCost, h.CurrentPrice, h.Sector, string(h.AssetClass), h.AsOf, now, now,
		).Scan(&h.ID)
		if err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
		}
		h.CreatedAt = now
		h.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAllHoldings returns every stored holding ordered by symbol
func (db *DB) GetAllHoldings() ([]*models.HoldingRow, error) {
	rows, err := db.conn.Query(`SELECT ` + holdingColumns + ` FROM holdings ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.HoldingRow
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}
	return holdings, nil
}

// GetHoldingBySymbol returns the stored holding for symbol or ErrNotFound
func (db *DB) GetHoldingBySymbol(symbol string) (*models.HoldingRow, error) {
	row := db.conn.QueryRow(`SELECT `+holdingColumns+` FROM holdings WHERE symbol = $1`, symbol)
	h, err := scanHolding(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("holding %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return h, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(s scanner) (*models.HoldingRow, error) {
	var h models.HoldingRow
	var name, sector sql.NullString
	var assetClass string
	err := s.Scan(
		&h.ID, &h.Symbol, &name, &h.Quantity, &h.AverageCost, &h.CurrentPrice, &sector, &assetClass, &h.AsOf, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.Name = name.String
	h.Sector = sector.String
	h.AssetClass = models.AssetClass(assetClass)
	return &h, nil
}
