package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/config"
	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/logging"
	"github.com/fleetdesk/leaveguard/internal/metrics"
	"github.com/fleetdesk/leaveguard/internal/notify"
	"github.com/fleetdesk/leaveguard/internal/repository"
	"github.com/fleetdesk/leaveguard/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

// queueDrainTimeout bounds how long Close waits for queued events.
const queueDrainTimeout = 5 * time.Second

// Settings maps configuration onto service tunables.
func Settings(cfg *config.Config) service.Settings {
	return service.Settings{
		Bands:             cfg.SeverityBands(),
		Scoring:           cfg.ScoringParams(),
		TopN:              cfg.Scoring.TopN,
		PerformanceWindow: cfg.PerformanceWindow(),
		LookupTimeout:     cfg.LookupTimeout(),
		AsyncGeneration:   cfg.Generation.Mode == config.GenerationAsync,
	}
}

// Wire opens the store and builds services, sinks and metrics into a.
func Wire(ctx context.Context, a *App, cfg *config.Config) error {
	logging.Configure(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Out: os.Stderr})
	a.Config = cfg
	a.Log = logging.New("cli")
	a.Clock = app.ClockOrSystem(a.Clock)

	database, err := db.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.onClose(database.Close)

	a.Registry = prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(a.Registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	sinks := notify.FanOut{notify.NewLogSink(logging.New("events"))}
	if cfg.Notifications.MQTT.Enabled {
		mqttSink, err := notify.NewMQTTSink(cfg.Notifications.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to mqtt broker: %w", err)
		}
		sinks = append(sinks, mqttSink)
		a.onClose(func() error {
			mqttSink.Close()
			return nil
		})
	}

	a.Events = notify.NewQueue(cfg.Notifications.QueueSize, sinks,
		notify.WithLogger(logging.New("notify")),
		notify.WithStats(recorder),
	)
	go a.Events.Run(context.WithoutCancel(ctx))
	a.onClose(func() error {
		a.Events.Close()
		select {
		case <-a.Events.Done():
			return nil
		case <-time.After(queueDrainTimeout):
			return fmt.Errorf("notification queue not drained after %s", queueDrainTimeout)
		}
	})

	a.Fleet = repository.NewSQLiteFleet(database, a.Clock)
	leaveRepo := repository.NewSQLiteLeaveRequestRepo(database)
	deps := service.Deps{
		Leaves:      leaveRepo,
		Conflicts:   repository.NewSQLiteConflictRepo(database),
		Suggestions: repository.NewSQLiteSuggestionRepo(database),
		UoW:         db.NewSQLiteUnitOfWork(database),
		Fleet:       a.Fleet.Collaborators(),
		Events:      a.Events,
		Clock:       a.Clock,
		Locks:       service.NewLocks(),
		Stats:       recorder,
		Log:         logging.New("service"),
		Observer: service.CombineObservers(
			service.NewLogUseCaseObserver(logging.New("usecase")),
			service.NewMetricsUseCaseObserver(recorder),
		),
	}
	settings := Settings(cfg)

	a.Suggestions, err = service.NewSuggestionService(deps, settings)
	if err != nil {
		return err
	}
	a.Worker = service.NewSuggestionWorker(leaveRepo, a.Suggestions, cfg.PollInterval(),
		cfg.Generation.BatchSize, logging.New("worker"), service.WithWorkerClock(a.Clock))
	a.Leaves, _, err = service.New(deps, settings, service.WithWaker(a.Worker))
	return err
}
