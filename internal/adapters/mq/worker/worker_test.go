package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/diarisk/internal/adapters/mq/queue"
	"github.com/okian/diarisk/internal/adapters/mq/worker"
	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/internal/domain/risk"
	"github.com/smartystreets/goconvey/convey"
)

var errMock = errors.New("mock rejection")

type mockPredictor struct {
	mu    sync.Mutex
	calls int
}

func (m *mockPredictor) Predict(_ context.Context, raw map[string]any) (prediction.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if _, ok := raw["panic"]; ok {
		panic("boom")
	}
	if _, ok := raw["fail"]; ok {
		return prediction.Result{}, errMock
	}
	g, _ := raw["glucose"].(float64)
	return prediction.Result{Probability: g / 1000, RiskLevel: risk.TierFor(g / 1000)}, nil
}

func (m *mockPredictor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func receive(ch <-chan queue.Outcome, n int) []queue.Outcome {
	out := make([]queue.Outcome, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case o := <-ch:
			out = append(out, o)
		case <-timeout:
			return out
		}
	}
	return out
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker on an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		p := &mockPredictor{}
		w := worker.NewInMemoryWorker(q, p, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		reply := make(chan queue.Outcome, 4)

		convey.Convey("When a valid job is processed", func() {
			convey.So(q.Enqueue(ctx, queue.Job{Index: 3, Record: map[string]any{"glucose": 800.0}, Reply: reply}), convey.ShouldBeTrue)
			got := receive(reply, 1)

			convey.Convey("Then the outcome should carry the index and result", func() {
				convey.So(got, convey.ShouldHaveLength, 1)
				convey.So(got[0].Index, convey.ShouldEqual, 3)
				convey.So(got[0].Err, convey.ShouldBeNil)
				convey.So(got[0].Result.RiskLevel, convey.ShouldEqual, risk.High)
			})
		})

		convey.Convey("When the predictor rejects or panics", func() {
			q.Enqueue(ctx, queue.Job{Index: 0, Record: map[string]any{"fail": true}, Reply: reply})
			q.Enqueue(ctx, queue.Job{Index: 1, Record: map[string]any{"panic": true}, Reply: reply})
			q.Enqueue(ctx, queue.Job{Index: 2, Record: map[string]any{"glucose": 100.0}, Reply: reply})
			got := receive(reply, 3)

			convey.Convey("Then every job should still get exactly one outcome", func() {
				convey.So(got, convey.ShouldHaveLength, 3)
				convey.So(errors.Is(got[0].Err, errMock), convey.ShouldBeTrue)
				convey.So(got[1].Err, convey.ShouldNotBeNil)
				convey.So(got[1].Err.Error(), convey.ShouldContainSubstring, "panicked")
				convey.So(got[2].Err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is closed", func() {
			q.Enqueue(ctx, queue.Job{Index: 0, Record: map[string]any{}, Reply: reply})
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then the worker should drain and exit", func() {
				sctx, scancel := context.WithTimeout(context.Background(), time.Second)
				defer scancel()
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(receive(reply, 1), convey.ShouldHaveLength, 1)
			})
		})
	})

	convey.Convey("Given a worker that never started", t, func() {
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, &mockPredictor{})

		convey.Convey("Then Shutdown should time out", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			err := w.Shutdown(ctx)
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of four workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		p := &mockPredictor{}
		pool := worker.NewPool(4, q, p)
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx := context.Background()
		pool.Start(ctx)

		convey.Convey("When a batch is enqueued and the queue closed", func() {
			reply := make(chan queue.Outcome, 50)
			for i := 0; i < 50; i++ {
				convey.So(q.Enqueue(ctx, queue.Job{Index: i, Record: map[string]any{"glucose": float64(i)}, Reply: reply}), convey.ShouldBeTrue)
			}
			convey.So(q.Close(), convey.ShouldBeNil)

			sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			convey.So(pool.Stop(sctx), convey.ShouldBeNil)

			convey.Convey("Then every job should be processed once", func() {
				got := receive(reply, 50)
				convey.So(got, convey.ShouldHaveLength, 50)
				convey.So(p.count(), convey.ShouldEqual, 50)
				seen := make(map[int]bool)
				for _, o := range got {
					seen[o.Index] = true
				}
				convey.So(seen, convey.ShouldHaveLength, 50)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), &mockPredictor{})
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
