package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []app.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e app.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) Events() []app.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]app.Event(nil), s.events...)
}

type countingStats struct {
	mu       sync.Mutex
	ok, fail int
	dropped  int
}

func (c *countingStats) RecordNotification(_ string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail++
		return
	}
	c.ok++
}

func (c *countingStats) RecordDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped++
}

func event(id string, typ app.EventType) app.Event {
	return app.Event{ID: id, Type: typ, OccurredAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestQueue_DeliversInOrderAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	stats := &countingStats{}
	q := NewQueue(8, sink, WithStats(stats))

	go q.Run(context.Background())
	require.NoError(t, q.Publish(context.Background(), event("e1", app.EventLeaveCreated)))
	require.NoError(t, q.Publish(context.Background(), event("e2", app.EventLeaveApproved)))
	q.Close()

	select {
	case <-q.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not drain")
	}

	got := sink.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "e2", got[1].ID)
	assert.Equal(t, 2, stats.ok)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	stats := &countingStats{}
	q := NewQueue(1, &recordingSink{}, WithStats(stats))

	require.NoError(t, q.Publish(context.Background(), event("e1", app.EventLeaveCreated)))
	require.NoError(t, q.Publish(context.Background(), event("e2", app.EventLeaveCreated)))
	require.NoError(t, q.Publish(context.Background(), event("e3", app.EventLeaveCreated)))

	assert.Equal(t, int64(2), q.Dropped())
	assert.Equal(t, 2, stats.dropped)
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, &recordingSink{})
	q.Close()
	q.Close()
	err := q.Publish(context.Background(), event("e1", app.EventLeaveCreated))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_SinkFailureIsCountedNotPropagated(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	stats := &countingStats{}
	q := NewQueue(4, sink, WithStats(stats))

	go q.Run(context.Background())
	require.NoError(t, q.Publish(context.Background(), event("e1", app.EventOperationalGap)))
	q.Close()
	<-q.Done()

	assert.Equal(t, 1, stats.fail)
	assert.Len(t, sink.Events(), 1)
}

func TestQueue_RunStopsOnCancel(t *testing.T) {
	q := NewQueue(1, &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	cancel()
	select {
	case <-q.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestFanOut_JoinsErrors(t *testing.T) {
	good := &recordingSink{}
	bad := &recordingSink{err: errors.New("nope")}
	err := FanOut{good, nil, bad}.Publish(context.Background(), event("e1", app.EventLeaveRejected))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Len(t, good.Events(), 1)
	assert.Len(t, bad.Events(), 1)
}
