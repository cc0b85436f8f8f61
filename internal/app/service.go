// Package service owns the loaded model artifact and exposes prediction,
// batch and reload operations to the CLI and HTTP adapters.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/diarisk/internal/adapters/artifact"
	"github.com/okian/diarisk/internal/adapters/mq/queue"
	"github.com/okian/diarisk/internal/adapters/mq/worker"
	"github.com/okian/diarisk/internal/adapters/repository"
	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/internal/domain/types"
	"github.com/okian/diarisk/pkg/logger"
	"github.com/okian/diarisk/pkg/metrics"
)

// Service implements the dependencies required by the CLI and HTTP API.
type Service struct {
	mu sync.RWMutex

	// Serving handle, swapped atomically on reload.
	pipeline atomic.Pointer[prediction.Pipeline]

	// Core components
	history    repository.Store
	batchQueue *queue.InMemoryQueue
	workerPool *worker.Pool
	loader     *artifact.Loader

	// Configuration
	modelDir       string
	loadTimeout    time.Duration
	batchWorkers   int
	batchQueueSize int
	maxBatchSize   int

	// State
	started bool
	cancel  context.CancelFunc
	runCtx  context.Context
	loops   sync.WaitGroup

	// Counters reported by GetStats
	predictions atomic.Int64
	rejections  atomic.Int64
	reloads     atomic.Int64

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := defaults()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the artifact and starts the batch workers. A load failure is
// returned and leaves the service stopped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.loader = artifact.NewLoader(artifact.WithLogger(s.logger.Named("artifact")))

	s.logger.Info(ctx, "starting diarisk service...", logger.String("model_dir", s.modelDir))

	p, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.pipeline.Store(p)

	if s.history == nil {
		s.history = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory history")
	}

	// Workers outlive the Start call; they stop on Stop.
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.batchQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.batchQueueSize))
	s.workerPool = worker.NewPool(s.batchWorkers, s.batchQueue, batchPredictor{s},
		worker.WithLogger(s.logger.Named("batch")))
	s.workerPool.Start(s.runCtx)

	s.loops.Add(1)
	go s.systemMetricsLoop(s.runCtx)

	s.started = true
	s.logger.Info(ctx, "diarisk service started",
		logger.String("model_type", p.Info().ModelType),
		logger.Int("batch_workers", s.workerPool.Size()),
		logger.Int("batch_queue_size", s.batchQueueSize),
	)
	return nil
}

// Stop drains the batch queue and closes the history store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping diarisk service...")

	_ = s.batchQueue.Close()
	stopCtx, cancel := context.WithTimeout(ctx, defaultStopTimeout)
	if err := s.workerPool.Stop(stopCtx); err != nil {
		s.logger.Warn(ctx, "batch workers did not stop cleanly", logger.Error(err))
	}
	cancel()

	s.cancel()
	s.loops.Wait()

	if err := s.history.Close(); err != nil {
		s.logger.Warn(ctx, "closing history store failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "diarisk service stopped")
}

// load reads and validates the artifact at modelDir within loadTimeout.
func (s *Service) load(ctx context.Context) (*prediction.Pipeline, error) {
	lctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	start := time.Now()
	a, err := s.loader.Load(lctx, s.modelDir)
	if err == nil {
		var p *prediction.Pipeline
		if p, err = prediction.New(a); err == nil {
			metrics.RecordModelLoad(metrics.ResultSuccess)
			metrics.UpdateModelInfo(p.Info().ModelType, a.LoadedAt)
			s.logger.Info(ctx, "model artifact loaded",
				logger.String("dir", s.modelDir),
				logger.String("model_type", p.Info().ModelType),
				logger.Duration("took", time.Since(start)),
			)
			return p, nil
		}
	}
	metrics.RecordModelLoad(metrics.ResultFailure)
	s.logger.Error(ctx, "model artifact load failed", logger.String("dir", s.modelDir), logger.Error(err))
	return nil, err
}

// Reload loads a fresh artifact and swaps it in. On failure the current
// artifact keeps serving and the error is returned.
func (s *Service) Reload(ctx context.Context) (ModelInfo, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ModelInfo{}, types.MissingArtifact("model artifact not loaded")
	}

	p, err := s.load(ctx)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("reload: %w", err)
	}
	s.pipeline.Store(p)
	s.reloads.Add(1)
	return infoOf(p), nil
}

type sourceKey struct{}

// WithSource tags ctx with the history source recorded for predictions.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceOf(ctx context.Context) string {
	if v, ok := ctx.Value(sourceKey{}).(string); ok && v != "" {
		return v
	}
	return repository.SourceHTTP
}

// Predict runs one raw record through the current artifact.
func (s *Service) Predict(ctx context.Context, raw map[string]any) (prediction.Result, error) {
	return s.predict(ctx, raw, sourceOf(ctx))
}

func (s *Service) predict(ctx context.Context, raw map[string]any, source string) (prediction.Result, error) {
	p := s.pipeline.Load()
	if p == nil {
		return prediction.Result{}, s.reject(types.MissingArtifact("model artifact not loaded"))
	}

	start := time.Now()
	res, err := p.Predict(raw)
	metrics.RecordPredictionLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return prediction.Result{}, s.reject(err)
	}

	s.predictions.Add(1)
	metrics.RecordPrediction(string(res.RiskLevel))
	s.record(ctx, res, source)
	return res, nil
}

func (s *Service) reject(err error) error {
	s.rejections.Add(1)
	kind, ok := types.KindOf(err)
	if !ok {
		kind = "Unknown"
	}
	metrics.RecordPredictionError(string(kind))
	return err
}

// record appends res to history. Failures are logged and never fail the prediction.
// history is fixed once Start returns, so no lock is taken; Stop holds the
// write lock while batch workers drain through here.
func (s *Service) record(ctx context.Context, res prediction.Result, source string) {
	h := s.history
	if h == nil {
		return
	}
	rec := repository.Record{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Source:      source,
		Prediction:  res.Prediction,
		Probability: res.Probability,
		Confidence:  res.Confidence,
		RiskLevel:   string(res.RiskLevel),
		ModelType:   res.ModelInfo.ModelType,
		Features:    res.InputFeatures,
	}
	if err := h.Save(ctx, rec); err != nil {
		metrics.RecordHistoryWrite(metrics.ResultFailure)
		s.logger.Warn(ctx, "history write failed", logger.String("id", rec.ID), logger.Error(err))
		return
	}
	metrics.RecordHistoryWrite(metrics.ResultSuccess)
}

// History returns up to limit recent predictions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]repository.Record, error) {
	s.mu.RLock()
	h := s.history
	s.mu.RUnlock()
	if h == nil {
		return nil, repository.ErrClosed
	}
	return h.Recent(ctx, limit)
}

func (s *Service) systemMetricsLoop(ctx context.Context) {
	defer s.loops.Done()
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		metrics.CollectSystemMetrics()
		if n, err := s.history.Count(ctx); err == nil {
			metrics.UpdateHistoryRecords(n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"modelDir":       s.modelDir,
		"batchWorkers":   s.batchWorkers,
		"batchQueueSize": s.batchQueueSize,
		"maxBatchSize":   s.maxBatchSize,
		"predictions":    s.predictions.Load(),
		"rejections":     s.rejections.Load(),
		"reloads":        s.reloads.Load(),
	}

	if p := s.pipeline.Load(); p != nil {
		info := p.Info()
		stats["modelType"] = info.ModelType
		stats["modelLoadedAt"] = info.LoadedAt
	}

	if s.started {
		ctx := context.Background()
		stats["batchQueueLength"] = s.batchQueue.Len(ctx)
		if n, err := s.history.Count(ctx); err == nil {
			stats["historyRecords"] = n
			metrics.UpdateHistoryRecords(n)
		}
	}

	return stats
}
