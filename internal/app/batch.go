package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/diarisk/internal/adapters/mq/queue"
	"github.com/okian/diarisk/internal/adapters/repository"
	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/internal/domain/types"
	"github.com/okian/diarisk/pkg/metrics"
)

// BatchItem is the outcome for one record of a batch, in input order.
type BatchItem struct {
	Index  int
	Result *prediction.Result
	Err    error
}

// batchPredictor adapts the service to worker.Predictor and tags history
// records with the batch source.
type batchPredictor struct {
	s *Service
}

func (b batchPredictor) Predict(ctx context.Context, raw map[string]any) (prediction.Result, error) {
	return b.s.predict(ctx, raw, repository.SourceBatch)
}

// PredictBatch fans records out to the worker pool and returns one item per
// record in input order. A nil record carries MissingInput and records the
// queue cannot accept carry a Backpressure error. The returned error is set only when the whole batch
// is rejected or ctx ends before every item is back.
func (s *Service) PredictBatch(ctx context.Context, records []map[string]any) ([]BatchItem, error) {
	s.mu.RLock()
	started := s.started
	q := s.batchQueue
	s.mu.RUnlock()

	switch {
	case !started:
		return nil, s.reject(types.MissingArtifact("model artifact not loaded"))
	case len(records) == 0:
		return nil, s.reject(types.MissingInput())
	case len(records) > s.maxBatchSize:
		return nil, s.reject(types.Backpressure(fmt.Sprintf("batch of %d records exceeds limit of %d", len(records), s.maxBatchSize)))
	}
	metrics.RecordBatchSize(len(records))

	batchID := uuid.NewString()
	items := make([]BatchItem, len(records))
	reply := make(chan queue.Outcome, len(records))
	pending := 0
	for i, rec := range records {
		items[i].Index = i
		if rec == nil {
			items[i].Err = s.reject(types.MissingInput())
			continue
		}
		if q.Enqueue(ctx, queue.Job{BatchID: batchID, Index: i, Record: rec, Reply: reply}) {
			pending++
			continue
		}
		cause := queue.ErrQueueFull
		switch {
		case q.IsClosed():
			cause = queue.ErrClosed
		case ctx.Err() != nil:
			cause = ctx.Err()
		}
		items[i].Err = s.reject(&types.Error{Kind: types.KindBackpressure, Msg: "record not accepted", Err: cause})
	}

	for pending > 0 {
		select {
		case out := <-reply:
			if out.Err != nil {
				items[out.Index].Err = out.Err
			} else {
				res := out.Result
				items[out.Index].Result = &res
			}
			pending--
		case <-ctx.Done():
			return items, fmt.Errorf("batch %s: %d records unfinished: %w", batchID, pending, ctx.Err())
		}
	}
	return items, nil
}
