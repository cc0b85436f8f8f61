// Package repository stores prediction history records.
package repository

import (
	"context"
	"time"
)

// Record sources.
const (
	SourceCLI   = "cli"
	SourceHTTP  = "http"
	SourceBatch = "batch"
)

// Record is one persisted prediction outcome.
type Record struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	Source      string             `json:"source"`
	Prediction  int                `json:"prediction"`
	Probability float64            `json:"probability"`
	Confidence  float64            `json:"confidence"`
	RiskLevel   string             `json:"risk_level"`
	ModelType   string             `json:"model_type"`
	Features    map[string]float64 `json:"features"`
}

// Store provides append and read access to prediction history.
type Store interface {
	// Save appends r. Saving an ID that already exists is a no-op.
	Save(ctx context.Context, r Record) error

	// Recent returns up to limit records, newest first.
	// Returns ErrInvalidLimit if limit < 1.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	Close() error
}
