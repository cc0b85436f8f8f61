package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/diarisk/pkg/logger"
)

// Run executes a complete load test and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadtest")
	stats := &Stats{StartTime: time.Now(), ByRiskLevel: make(map[string]int)}
	client := newHTTPClient(cfg.Timeout)

	log.Info(ctx, "starting diarisk load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("records", cfg.Records),
		logger.Int("batches", cfg.Batches),
		logger.Int("workers", cfg.Workers))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, cfg, client); err != nil {
		return nil, err
	}
	before, err := serverPredictions(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	// Step 2: Generate and submit single records
	records, bad := generateRecords(cfg.Records, cfg.Seed, cfg.InvalidEvery)
	stats.ExpectedBad = bad
	submitRecords(ctx, cfg, client, records, stats)

	// Step 3: Submit batches
	if cfg.Batches > 0 {
		batchRecords, batchBad := generateRecords(cfg.Batches*cfg.BatchSize, cfg.Seed+1, cfg.InvalidEvery)
		stats.ExpectedBad += batchBad
		if err := submitBatches(ctx, cfg, client, batchRecords, stats); err != nil {
			return nil, fmt.Errorf("batch submission failed: %w", err)
		}
	}

	// Step 4: Verify counters
	after, err := serverPredictions(ctx, cfg, client)
	if err != nil {
		return nil, err
	}
	stats.ServerCount = after - before
	if err := verifyResults(ctx, cfg, client, stats); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func checkServiceHealth(ctx context.Context, cfg *Config, client *HTTPClient) error {
	status, _, err := client.Get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: /healthz returned %d", ErrUnhealthy, status)
	}
	status, _, err = client.Get(ctx, cfg.BaseURL+"/model")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: no model loaded (/model returned %d)", ErrUnhealthy, status)
	}
	return nil
}

// serverPredictions reads the predictions counter from /stats.
func serverPredictions(ctx context.Context, cfg *Config, client *HTTPClient) (int64, error) {
	status, body, err := client.Get(ctx, cfg.BaseURL+"/stats")
	if err != nil {
		return 0, fmt.Errorf("stats request: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("stats request returned %d", status)
	}
	var stats struct {
		Predictions int64 `json:"predictions"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		return 0, fmt.Errorf("decode stats: %w", err)
	}
	return stats.Predictions, nil
}

func verifyResults(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) error {
	if stats.Failed > 0 {
		return fmt.Errorf("%w: %d requests failed", ErrMismatch, stats.Failed)
	}
	if got := stats.Rejected + stats.BatchFailed; got != stats.ExpectedBad {
		return fmt.Errorf("%w: expected %d rejected records, got %d", ErrMismatch, stats.ExpectedBad, got)
	}
	if want := int64(stats.Succeeded + stats.BatchItems); stats.ServerCount != want {
		return fmt.Errorf("%w: server counted %d predictions, client saw %d", ErrMismatch, stats.ServerCount, want)
	}

	status, body, err := client.Get(ctx, cfg.BaseURL+"/history?limit=1")
	if err != nil {
		return fmt.Errorf("history request: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("history request returned %d", status)
	}
	var recs []json.RawMessage
	if err := json.Unmarshal(body, &recs); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	stats.HistoryCount = len(recs)
	if stats.Succeeded+stats.BatchItems > 0 && len(recs) == 0 {
		return fmt.Errorf("%w: history is empty after successful predictions", ErrMismatch)
	}
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted+stats.BatchItems+stats.BatchFailed) / stats.Duration.Seconds()
	}
	logger.Get().Named("loadtest").Info(ctx, "final statistics",
		logger.Int("submitted", stats.Submitted),
		logger.Int("succeeded", stats.Succeeded),
		logger.Int("rejected", stats.Rejected),
		logger.Int("batchItems", stats.BatchItems),
		logger.Int("batchFailed", stats.BatchFailed),
		logger.Any("byRiskLevel", stats.ByRiskLevel),
		logger.Duration("duration", stats.Duration),
		logger.Float64("recordsPerSecond", perSecond))
}
