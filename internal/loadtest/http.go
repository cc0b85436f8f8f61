package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/diarisk/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request and returns status and body.
func (c *HTTPClient) Get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

// Post performs a POST request with a JSON body and returns status and body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (int, []byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

type predictResponse struct {
	RiskLevel string `json:"risk_level"`
}

// submitRecords posts each record to /predict using a worker pool.
func submitRecords(ctx context.Context, cfg *Config, client *HTTPClient, records []map[string]any, stats *Stats) {
	log := logger.Get().Named("loadtest")
	url := cfg.BaseURL + "/predict"

	var submitted, succeeded, rejected, failed int64
	var mu sync.Mutex
	levels := make(map[string]int)

	jobs := make(chan map[string]any, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				atomic.AddInt64(&submitted, 1)
				status, body, err := client.Post(ctx, url, rec)
				switch {
				case err != nil || status >= http.StatusInternalServerError:
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						log.Warn(ctx, "predict request failed", logger.Int("status", status), logger.Error(err))
					}
				case status >= http.StatusBadRequest:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&succeeded, 1)
					var res predictResponse
					if json.Unmarshal(body, &res) == nil {
						mu.Lock()
						levels[res.RiskLevel]++
						mu.Unlock()
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, rec := range records {
			select {
			case <-ctx.Done():
				return
			case jobs <- rec:
			}
		}
	}()
	wg.Wait()

	stats.Submitted += int(submitted)
	stats.Succeeded += int(succeeded)
	stats.Rejected += int(rejected)
	stats.Failed += int(failed)
	for k, v := range levels {
		stats.ByRiskLevel[k] += v
	}
	log.Info(ctx, "single predictions submitted",
		logger.Int("submitted", int(submitted)),
		logger.Int("succeeded", int(succeeded)),
		logger.Int("rejected", int(rejected)),
		logger.Int("failed", int(failed)))
}

type batchResponse struct {
	BatchSize int `json:"batch_size"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// submitBatches posts records to /predict/batch in chunks of cfg.BatchSize.
func submitBatches(ctx context.Context, cfg *Config, client *HTTPClient, records []map[string]any, stats *Stats) error {
	url := cfg.BaseURL + "/predict/batch"
	for start := 0; start < len(records); start += cfg.BatchSize {
		part := records[start:min(start+cfg.BatchSize, len(records))]
		status, body, err := client.Post(ctx, url, map[string]any{"records": part})
		if err != nil {
			return fmt.Errorf("batch request: %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("batch request returned %d: %s", status, body)
		}
		var resp batchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode batch response: %w", err)
		}
		if resp.BatchSize != len(part) {
			return fmt.Errorf("%w: batch of %d returned %d items", ErrMismatch, len(part), resp.BatchSize)
		}
		stats.BatchItems += resp.Succeeded
		stats.BatchFailed += resp.Failed
	}
	return nil
}
