// Package loadtest drives a running diarisk server with synthetic records
// and checks that its counters agree with what was sent.
package loadtest

import (
	"fmt"
	"time"
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Records      int           // Number of records to submit through POST /predict
	Batches      int           // Number of POST /predict/batch requests
	BatchSize    int           // Records per batch request
	InvalidEvery int           // Every n-th record is made out of range; 0 disables
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	Seed         uint64        // Seed for the synthetic records
	Verbose      bool          // Log every failed request
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.Records < 0 || c.Batches < 0:
		return fmt.Errorf("%w: record and batch counts must not be negative", ErrInvalidConfig)
	case c.Batches > 0 && c.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Stats holds test statistics.
type Stats struct {
	Submitted    int
	Succeeded    int
	Rejected     int // 4xx responses
	Failed       int // transport errors and 5xx
	BatchItems   int
	BatchFailed  int
	ByRiskLevel  map[string]int
	ExpectedBad  int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	ServerCount  int64
	HistoryCount int
}
