package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
)

// FixedClock is a settable clock for deterministic tests.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t.UTC()}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// SlowTrips delays every lookup by Delay, or until ctx ends.
type SlowTrips struct {
	app.TripObligationLookup
	Delay time.Duration
}

func (s *SlowTrips) FindOverlapping(ctx context.Context, driverID string, start, end time.Time) ([]domain.TripObligation, error) {
	select {
	case <-time.After(s.Delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.TripObligationLookup.FindOverlapping(ctx, driverID, start, end)
}

// FailingVehicles fails lookups for which Fail returns true.
type FailingVehicles struct {
	app.VehicleAvailability
	Fail func(start, end time.Time) bool
	Err  error
}

func (f *FailingVehicles) FindAvailable(ctx context.Context, start, end time.Time, minCapacity int) ([]domain.Vehicle, error) {
	if f.Fail == nil || f.Fail(start, end) {
		return nil, f.err()
	}
	return f.VehicleAvailability.FindAvailable(ctx, start, end, minCapacity)
}

func (f *FailingVehicles) err() error {
	if f.Err != nil {
		return f.Err
	}
	return errors.New("vehicle registry unavailable")
}

// BlockingPerformance blocks every Get until ctx ends.
type BlockingPerformance struct{}

func (BlockingPerformance) Get(ctx context.Context, _ string, _ time.Time) (domain.PerformanceRecord, error) {
	<-ctx.Done()
	return domain.PerformanceRecord{}, ctx.Err()
}

// CountingAssignments counts calls to the wrapped writer and can fail them.
type CountingAssignments struct {
	app.AssignmentWriter
	Created    atomic.Int32
	Retracted  atomic.Int32
	CreateErr  error
	RetractErr error
}

func (c *CountingAssignments) CreateReplacement(ctx context.Context, req app.ReplacementRequest) (string, error) {
	c.Created.Add(1)
	if c.CreateErr != nil {
		return "", c.CreateErr
	}
	return c.AssignmentWriter.CreateReplacement(ctx, req)
}

func (c *CountingAssignments) Retract(ctx context.Context, assignmentID string) error {
	c.Retracted.Add(1)
	if c.RetractErr != nil {
		return c.RetractErr
	}
	return c.AssignmentWriter.Retract(ctx, assignmentID)
}

// RecordingSink keeps every published event.
type RecordingSink struct {
	mu     sync.Mutex
	events []app.Event
	Err    error
}

func (s *RecordingSink) Publish(_ context.Context, e app.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.Err
}

func (s *RecordingSink) Events() []app.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]app.Event(nil), s.events...)
}

// Types returns the event types in publication order.
func (s *RecordingSink) Types() []app.EventType {
	events := s.Events()
	out := make([]app.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
