package service

import (
	"fmt"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/logging"
	"github.com/fleetdesk/leaveguard/internal/repository"
	"github.com/fleetdesk/leaveguard/internal/scheduler"
)

// Settings are the tunables of detection, scoring and generation.
type Settings struct {
	Bands             scheduler.SeverityBands
	Scoring           scheduler.ScoringParams
	TopN              int
	PerformanceWindow time.Duration
	// LookupTimeout bounds each collaborator call.
	LookupTimeout time.Duration
	// AsyncGeneration defers auto-replacement to the suggestion worker.
	AsyncGeneration bool
}

func DefaultSettings() Settings {
	return Settings{
		Bands:             scheduler.DefaultSeverityBands(),
		Scoring:           scheduler.DefaultScoringParams(),
		TopN:              3,
		PerformanceWindow: 90 * 24 * time.Hour,
		LookupTimeout:     5 * time.Second,
	}
}

// Deps wires the stores, collaborators and ambient services shared by the
// leave and suggestion services.
type Deps struct {
	Leaves      repository.LeaveRequestRepo
	Conflicts   repository.ConflictRepo
	Suggestions repository.SuggestionRepo
	UoW         db.UnitOfWork
	Fleet       app.Collaborators
	Events      app.NotificationSink
	Clock       app.Clock
	// Locks serialises work per leave request, driver and vehicle. Services
	// sharing a store must share Locks.
	Locks    *Locks
	Stats    DomainStats
	Log      logging.Logger
	Observer UseCaseObserver
}

func (d Deps) withDefaults() Deps {
	d.Clock = app.ClockOrSystem(d.Clock)
	if d.Locks == nil {
		d.Locks = NewLocks()
	}
	if d.Stats == nil {
		d.Stats = noopStats{}
	}
	d.Log = logging.OrNop(d.Log)
	if d.Observer == nil {
		d.Observer = NoopUseCaseObserver{}
	}
	return d
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.TopN <= 0 {
		s.TopN = def.TopN
	}
	if s.Bands == (scheduler.SeverityBands{}) {
		s.Bands = def.Bands
	}
	if s.Scoring.Weights == (scheduler.ScoringWeights{}) {
		s.Scoring.Weights = def.Scoring.Weights
	}
	// Drivers without history never score 0.
	if s.Scoring.NeutralPerformance <= 0 {
		s.Scoring.NeutralPerformance = def.Scoring.NeutralPerformance
	}
	if s.Scoring.ComfortMargin <= 0 {
		s.Scoring.ComfortMargin = def.Scoring.ComfortMargin
	}
	if s.Scoring.CredentialHorizon <= 0 {
		s.Scoring.CredentialHorizon = def.Scoring.CredentialHorizon
	}
	if s.PerformanceWindow <= 0 {
		s.PerformanceWindow = def.PerformanceWindow
	}
	if s.LookupTimeout <= 0 {
		s.LookupTimeout = def.LookupTimeout
	}
	return s
}

// Validate checks settings after defaults have been applied.
func (s Settings) Validate() error {
	if err := s.Bands.Validate(); err != nil {
		return err
	}
	if err := s.Scoring.Weights.Validate(); err != nil {
		return err
	}
	if s.Scoring.NeutralPerformance > 100 {
		return fmt.Errorf("neutral performance must be within (0,100], got %v", s.Scoring.NeutralPerformance)
	}
	return nil
}
