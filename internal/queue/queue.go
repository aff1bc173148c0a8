package queue

import (
	"context"
	"sync/atomic"
	"time"
)

// Logger is the minimal logging surface the queue package depends on,
// satisfied by *logging.Logger without importing it directly.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// pollInterval is how long Dequeue blocks waiting for a message before
// re-checking ctx.Done(). This bounds shutdown latency rather than
// expressing any real polling of the underlying channel.
const pollInterval = time.Second

// Queue is a fixed-capacity FIFO used to fan messages out from MQTT
// ingress to a single subsystem's worker pool. Enqueue never blocks:
// when the queue is full the newest message is dropped and a warning
// is logged, tagged with the subsystem name. Dropping must never slow
// down ingestion.
type Queue struct {
	name    string
	ch      chan Message
	logger  Logger
	dropped atomic.Int64
}

// New creates a Queue with the given fixed capacity. name identifies
// the owning subsystem ("actions", "camera", "storage") in dropped
// message warnings.
func New(name string, capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		name: name,
		ch:   make(chan Message, capacity),
	}
}

// SetLogger attaches a logger used to report dropped messages.
func (q *Queue) SetLogger(logger Logger) {
	q.logger = logger
}

// Enqueue attempts a non-blocking send. If the queue is full the
// message is dropped, a "dropped" warning is logged, and Enqueue
// returns false. Callers must never fall back to a blocking send on
// false — that would defeat the non-blocking-ingestion guarantee.
func (q *Queue) Enqueue(msg Message) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		q.dropped.Add(1)
		if q.logger != nil {
			q.logger.Warn("queue full — dropped message",
				"subsystem", q.name,
				"topic", msg.Topic,
				"device_id", msg.DeviceID,
			)
		}
		return false
	}
}

// Dequeue blocks until a message is available, ctx is cancelled, or
// pollInterval elapses (in which case it returns ok=false so callers
// can re-check their own shutdown conditions — the worker-pool
// consumer loop relies on this to notice context cancellation without
// needing a separate done channel wired through the channel select).
func (q *Queue) Dequeue(ctx context.Context) (Message, bool) {
	select {
	case msg := <-q.ch:
		return msg, true
	case <-ctx.Done():
		return Message{}, false
	case <-time.After(pollInterval):
		return Message{}, false
	}
}

// Dropped returns the total number of messages dropped for being full
// since the queue was created.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Len returns the number of messages currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Name returns the subsystem name this queue was created for.
func (q *Queue) Name() string {
	return q.name
}
