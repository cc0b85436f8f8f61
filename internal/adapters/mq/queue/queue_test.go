package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func job(i int) Job {
	return Job{BatchID: "b1", Index: i, Record: map[string]any{"glucose": float64(100 + i)}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, job(0)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	q.MarkDequeued(j)
	if j.Index != 0 || j.BatchID != "b1" {
		t.Errorf("unexpected job %+v", j)
	}
	if j.EnqueuedAt.IsZero() {
		t.Error("expected enqueue time to be stamped")
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if q.Capacity() != 2 {
		t.Fatalf("expected capacity 2, got %d", q.Capacity())
	}
	if !q.Enqueue(ctx, job(0)) || !q.Enqueue(ctx, job(1)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, job(2)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, job(0)) {
		t.Error("expected enqueue to fail with cancelled context")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(16))
	ctx := context.Background()
	const producers, perProducer = 8, 50

	var consumed sync.WaitGroup
	seen := make(chan int, producers*perProducer)
	for i := 0; i < 4; i++ {
		consumed.Add(1)
		go func() {
			defer consumed.Done()
			for j := range q.Dequeue(ctx) {
				q.MarkDequeued(j)
				seen <- j.Index
			}
		}()
	}

	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for i := 0; i < perProducer; i++ {
				for !q.Enqueue(ctx, job(p*perProducer+i)) {
					time.Sleep(time.Millisecond)
				}
			}
		}(p)
	}
	produced.Wait()
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	consumed.Wait()
	close(seen)

	got := make(map[int]bool)
	for idx := range seen {
		got[idx] = true
	}
	if len(got) != producers*perProducer {
		t.Errorf("expected %d distinct jobs, got %d", producers*perProducer, len(got))
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, job(0)) || !q.Enqueue(ctx, job(1)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, job(2)) {
		t.Error("expected enqueue to fail after closing")
	}

	// Jobs queued before Close are still delivered, then the channel closes.
	var drained int
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-q.Dequeue(ctx):
			if !ok {
				if drained != 2 {
					t.Errorf("expected 2 drained jobs, got %d", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained++
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
