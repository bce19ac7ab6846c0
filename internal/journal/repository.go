package journal

import (
	"context"
	"fmt"
	"time"

	"contrarian-trading-bot/internal/signal"
)

// Admission outcome values recorded alongside each journaled signal
const (
	OutcomeExecuted  = "EXECUTED"
	OutcomeSkipped   = "SKIPPED"
	OutcomeDiscarded = "DISCARDED"
	OutcomeBlocked   = "BLOCKED"
	OutcomeVetoed    = "VETOED"
)

// SignalRecord is a journaled signal row
type SignalRecord struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Direction    string    `json:"direction"`
	Strength     float64   `json:"strength"`
	Confluences  []string  `json:"confluences"`
	MLConfidence float64   `json:"ml_confidence"`
	VolumeScore  float64   `json:"volume_score"`
	Enhancements []string  `json:"enhancements"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Repository provides journal persistence operations
type Repository struct {
	db *DB
}

// NewRepository creates a new journal repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveSignal journals an enhanced signal
func (r *Repository) SaveSignal(ctx context.Context, sig *signal.EnhancedSignal) error {
	query := `
		INSERT INTO signals (id, symbol, direction, strength, confluences,
			ml_confidence, volume_score, enhancements, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Pool.Exec(ctx, query,
		sig.ID, sig.Symbol, string(sig.Direction), sig.Strength, sig.Confluences,
		sig.MLConfidence, sig.VolumeScore, sig.Enhancements, sig.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to save signal %s: %w", sig.ID, err)
	}
	return nil
}

// SaveOutcome records the admission decision for a journaled signal
func (r *Repository) SaveOutcome(ctx context.Context, signalID, symbol, outcome, reason string) error {
	query := `
		INSERT INTO admission_outcomes (signal_id, symbol, outcome, reason, decided_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Pool.Exec(ctx, query, signalID, symbol, outcome, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save outcome for signal %s: %w", signalID, err)
	}
	return nil
}

// RecentSignals returns the most recent journaled signals
func (r *Repository) RecentSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, direction, strength, confluences,
			COALESCE(ml_confidence, 0), COALESCE(volume_score, 0),
			COALESCE(enhancements, '{}'), generated_at
		FROM signals
		ORDER BY generated_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var records []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Direction, &rec.Strength,
			&rec.Confluences, &rec.MLConfidence, &rec.VolumeScore,
			&rec.Enhancements, &rec.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
