package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/okian/diarisk/internal/loadtest"
	"github.com/okian/diarisk/pkg/logger"
)

// Default configuration constants.
const (
	defaultRecords     = 1000
	defaultBatches     = 10
	defaultBatchSize   = 100
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		records      = flag.Int("records", defaultRecords, "Number of records to submit one by one")
		batches      = flag.Int("batches", defaultBatches, "Number of batch requests")
		batchSize    = flag.Int("batch-size", defaultBatchSize, "Records per batch request")
		invalidEvery = flag.Int("invalid-every", 0, "Make every n-th record out of range (0 disables)")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed         = flag.Uint64("seed", 42, "Seed for synthetic records")
		logFile      = flag.String("log", "", "Also write logs to this file")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	closeLog, err := setupLogging(*logFile, *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to setup logging:", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:      *baseURL,
		Records:      *records,
		Batches:      *batches,
		BatchSize:    *batchSize,
		InvalidEvery: *invalidEvery,
		Workers:      *workers,
		Timeout:      *timeout,
		Seed:         *seed,
		Verbose:      *verbose,
	}

	if _, err := loadtest.Run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Test failed:", err)
		closeLog()
		os.Exit(1)
	}
}

func setupLogging(path string, verbose bool) (func(), error) {
	level := "info"
	if verbose {
		level = "debug"
	}
	var w io.Writer = os.Stdout
	closeFn := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closeFn = func() { _ = f.Close() }
	}
	if err := logger.Init(logger.WithWriter(w), logger.WithLevel(level)); err != nil {
		closeFn()
		return nil, err
	}
	return closeFn, nil
}
