package service

import (
	"runtime"
	"time"

	"github.com/okian/diarisk/internal/adapters/repository"
	"github.com/okian/diarisk/pkg/logger"
)

// Default service configuration.
const (
	defaultModelDir       = "models"
	defaultLoadTimeout    = 10 * time.Second
	defaultBatchQueueSize = 1024
	defaultMaxBatchSize   = 1000
	defaultStopTimeout    = 10 * time.Second
	systemMetricsInterval = 10 * time.Second
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithModelDir sets the artifact directory loaded at Start and on Reload.
func WithModelDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.modelDir = dir
		}
	}
}

// WithHistory sets the prediction history store. The service closes it on Stop.
func WithHistory(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.history = store
		}
	}
}

// WithBatchWorkers sets the number of batch worker goroutines.
func WithBatchWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchWorkers = n
		}
	}
}

// WithBatchQueueSize sets the capacity of the batch job queue.
func WithBatchQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchQueueSize = n
		}
	}
}

// WithMaxBatchSize caps the number of records accepted by PredictBatch.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithLoadTimeout bounds each artifact load.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

func defaults() *Service {
	return &Service{
		modelDir:       defaultModelDir,
		loadTimeout:    defaultLoadTimeout,
		batchWorkers:   runtime.NumCPU(),
		batchQueueSize: defaultBatchQueueSize,
		maxBatchSize:   defaultMaxBatchSize,
	}
}
