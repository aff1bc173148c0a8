package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPoolProcessesRelevantMessages(t *testing.T) {
	q := New("actions", 4)

	var mu sync.Mutex
	var processed []string

	predicate := func(msg Message) bool { return msg.Topic != "irrelevant" }
	process := func(_ context.Context, msg Message) error {
		mu.Lock()
		processed = append(processed, msg.Topic)
		mu.Unlock()
		return nil
	}

	pool := NewPool(q, 2, predicate, process)

	ctx, cancel := context.WithCancel(context.Background())
	go pool.Run(ctx)

	q.Enqueue(Message{Topic: "relevant-1"})
	q.Enqueue(Message{Topic: "irrelevant"})
	q.Enqueue(Message{Topic: "relevant-2"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(processed)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	pool.WaitTimeout(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(processed) != 2 {
		t.Fatalf("processed = %v, want 2 relevant messages", processed)
	}
	for _, topic := range processed {
		if topic == "irrelevant" {
			t.Errorf("irrelevant message was processed")
		}
	}
}

func TestPoolSurvivesWorkerError(t *testing.T) {
	q := New("storage", 2)
	log := &testLogger{}

	done := make(chan struct{})
	process := func(_ context.Context, _ Message) error {
		defer close(done)
		return errors.New("write failed")
	}

	pool := NewPool(q, 1, nil, process)
	pool.SetLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	go pool.Run(ctx)
	defer cancel()

	q.Enqueue(Message{Topic: "storage/write"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process was never invoked")
	}

	if len(log.warnings) == 0 {
		t.Error("expected the process error to be logged")
	}
}

func TestPoolSurvivesWorkerPanic(t *testing.T) {
	q := New("camera", 2)
	log := &testLogger{}

	done := make(chan struct{})
	process := func(_ context.Context, _ Message) error {
		defer close(done)
		panic("boom")
	}

	pool := NewPool(q, 1, nil, process)
	pool.SetLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	go pool.Run(ctx)
	defer cancel()

	q.Enqueue(Message{Topic: "cameras/cam-01/snapshot"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process was never invoked")
	}

	// Give the deferred recover a moment to log after the panic unwinds.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(log.warnings) == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	if len(log.warnings) == 0 {
		t.Error("expected the panic to be recovered and logged")
	}
}

func TestPoolRunStopsOnContextCancel(t *testing.T) {
	q := New("actions", 2)
	pool := NewPool(q, 1, nil, func(_ context.Context, _ Message) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(stopped)
	}()

	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
