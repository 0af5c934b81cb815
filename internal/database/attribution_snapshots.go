package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-analytics/internal/models"
)

// CreateAttributionSnapshot stores an attribution run with its records as JSON
func (db *DB) CreateAttributionSnapshot(s *models.AttributionSnapshot) error {
	payload, err := json.Marshal(s.Attribution)
	if err != nil {
		return fmt.Errorf("failed to encode attribution: %w", err)
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now()
	}

	query := `
		INSERT INTO attribution_snapshots (source, total_value, holding_count, payload, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err = db.conn.QueryRow(query,
		s.Source, s.TotalValue, s.HoldingCount, payload, s.CapturedAt,
	).Scan(&s.ID)

	if err != nil {
		return fmt.Errorf("failed to create attribution snapshot: %w", err)
	}
	return nil
}

// GetLatestAttributionSnapshot returns the most recent attribution run
func (db *DB) GetLatestAttributionSnapshot() (*models.AttributionSnapshot, error) {
	query := `
		SELECT id, source, total_value, holding_count, payload, captured_at
		FROM attribution_snapshots
		ORDER BY captured_at DESC
		LIMIT 1
	`
	var s models.AttributionSnapshot
	var payload []byte
	err := db.conn.QueryRow(query).Scan(&s.ID, &s.Source, &s.TotalValue, &s.HoldingCount, &payload, &s.CapturedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("attribution snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attribution snapshot: %w", err)
	}

	if err := json.Unmarshal(payload, &s.Attribution); err != nil {
		return nil, fmt.Errorf("failed to decode attribution: %w", err)
	}
	return &s, nil
}
