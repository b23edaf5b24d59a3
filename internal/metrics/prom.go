// Package metrics exposes leaveguard's Prometheus instrumentation.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder records workflow metrics on a Prometheus registerer.
type Recorder struct {
	useCases      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	conflicts     *prometheus.CounterVec
	suggestions   prometheus.Counter
	gaps          prometheus.Counter
	notifications *prometheus.CounterVec
	dropped       prometheus.Counter
}

// NewRecorder registers the collectors on reg, or on the default registerer
// when reg is nil. Collectors already registered are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		useCases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaveguard_use_cases_total",
			Help: "Service use case executions by outcome",
		}, []string{"use_case", "success"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leaveguard_use_case_duration_seconds",
			Help:    "Service use case duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"use_case"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaveguard_conflicts_detected_total",
			Help: "Conflicts created by the detector, by severity",
		}, []string{"severity"}),
		suggestions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leaveguard_suggestions_persisted_total",
			Help: "Ranked candidate pairs persisted as suggestions",
		}),
		gaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leaveguard_operational_gaps_total",
			Help: "Conflicts left without a replacement when their leave was approved",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaveguard_notifications_total",
			Help: "Notification deliveries by sink and outcome",
		}, []string{"sink", "success"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leaveguard_notifications_dropped_total",
			Help: "Events dropped because the notification queue was full",
		}),
	}

	var err error
	if r.useCases, err = register(reg, r.useCases); err != nil {
		return nil, err
	}
	if r.latency, err = register(reg, r.latency); err != nil {
		return nil, err
	}
	if r.conflicts, err = register(reg, r.conflicts); err != nil {
		return nil, err
	}
	if r.suggestions, err = register(reg, r.suggestions); err != nil {
		return nil, err
	}
	if r.gaps, err = register(reg, r.gaps); err != nil {
		return nil, err
	}
	if r.notifications, err = register(reg, r.notifications); err != nil {
		return nil, err
	}
	if r.dropped, err = register(reg, r.dropped); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (r *Recorder) ObserveUseCase(name string, success bool, d time.Duration) {
	r.useCases.WithLabelValues(name, strconv.FormatBool(success)).Inc()
	r.latency.WithLabelValues(name).Observe(d.Seconds())
}

func (r *Recorder) RecordConflict(severity string) {
	r.conflicts.WithLabelValues(severity).Inc()
}

func (r *Recorder) RecordSuggestions(n int) {
	if n > 0 {
		r.suggestions.Add(float64(n))
	}
}

func (r *Recorder) RecordGaps(n int) {
	if n > 0 {
		r.gaps.Add(float64(n))
	}
}

func (r *Recorder) RecordNotification(sink string, err error) {
	r.notifications.WithLabelValues(sink, strconv.FormatBool(err == nil)).Inc()
}

func (r *Recorder) RecordDropped() {
	r.dropped.Inc()
}
