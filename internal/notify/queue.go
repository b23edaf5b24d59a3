// Package notify delivers workflow events to notification sinks off the
// request path.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/logging"
)

var ErrQueueClosed = errors.New("notification queue closed")

const DefaultQueueSize = 256

// Stats receives delivery outcomes. *metrics.Recorder satisfies it.
type Stats interface {
	RecordNotification(sink string, err error)
	RecordDropped()
}

type noopStats struct{}

func (noopStats) RecordNotification(string, error) {}
func (noopStats) RecordDropped()                   {}

// Named is implemented by sinks that report a label for metrics.
type Named interface {
	Name() string
}

// Queue is a bounded outbound event buffer drained by Run. Publish never
// blocks: when the buffer is full the event is dropped and counted.
type Queue struct {
	events chan app.Event
	sink   app.NotificationSink
	log    logging.Logger
	stats  Stats

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

type QueueOption func(*Queue)

func WithLogger(l logging.Logger) QueueOption {
	return func(q *Queue) { q.log = logging.OrNop(l) }
}

func WithStats(s Stats) QueueOption {
	return func(q *Queue) {
		if s != nil {
			q.stats = s
		}
	}
}

func NewQueue(size int, sink app.NotificationSink, opts ...QueueOption) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		events: make(chan app.Event, size),
		sink:   sink,
		log:    logging.NopLogger{},
		stats:  noopStats{},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

var _ app.NotificationSink = (*Queue)(nil)

func (q *Queue) Publish(_ context.Context, event app.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- event:
	default:
		q.dropped.Add(1)
		q.stats.RecordDropped()
		q.log.Warnw("notification queue full, dropping event", map[string]any{
			"event_type": string(event.Type),
			"event_id":   event.ID,
		})
	}
	return nil
}

// Run delivers queued events until ctx is cancelled or the queue is closed
// and drained.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-q.events:
			if !ok {
				return
			}
			q.deliver(ctx, event)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, event app.Event) {
	if q.sink == nil {
		return
	}
	err := q.sink.Publish(ctx, event)
	q.stats.RecordNotification(sinkName(q.sink), err)
	if err != nil {
		q.log.Warnw("notification delivery failed", map[string]any{
			"event_type": string(event.Type),
			"event_id":   event.ID,
			"error":      err.Error(),
		})
	}
}

// Close stops accepting events. Run returns once the buffer is drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.events)
}

// Done is closed when Run returns.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

func sinkName(s app.NotificationSink) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "sink"
}
