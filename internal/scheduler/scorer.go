package scheduler

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fleetdesk/leaveguard/internal/app"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"gonum.org/v1/gonum/floats"
)

type ScoringWeights struct {
	RouteFamiliarity float64
	Performance      float64
	AvailabilityFit  float64
	CredentialMargin float64
}

func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		RouteFamiliarity: 0.3,
		Performance:      0.3,
		AvailabilityFit:  0.25,
		CredentialMargin: 0.15,
	}
}

func (w ScoringWeights) vector() []float64 {
	return []float64{w.RouteFamiliarity, w.Performance, w.AvailabilityFit, w.CredentialMargin}
}

// Validate requires non-negative weights summing to 1.
func (w ScoringWeights) Validate() error {
	v := w.vector()
	if floats.Min(v) < 0 {
		return fmt.Errorf("scoring weights must be non-negative: %+v", w)
	}
	if sum := floats.Sum(v); math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1, got %.6f", sum)
	}
	return nil
}

type ScoringParams struct {
	Weights ScoringWeights
	// NeutralPerformance is used for drivers without history.
	NeutralPerformance float64
	// ComfortMargin is the working-window slack at which fit reaches 100.
	ComfortMargin time.Duration
	// CredentialHorizon is the remaining validity at which margin reaches 100.
	CredentialHorizon time.Duration
}

func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		Weights:            DefaultWeights(),
		NeutralPerformance: 50,
		ComfortMargin:      60 * time.Minute,
		CredentialHorizon:  180 * 24 * time.Hour,
	}
}

type ScoringInput struct {
	Driver    domain.Driver
	VehicleID string
	RouteID   string
	Trip      domain.Interval
	// History is nil when the driver has no recorded trips.
	History *domain.PerformanceRecord
	Params  ScoringParams
}

type ScoredCandidate struct {
	Pair    domain.CandidatePair
	Reasons []app.ScoreReason
}

// ScoreCandidate computes the weighted 0-100 suitability of one pair.
func ScoreCandidate(input ScoringInput) ScoredCandidate {
	familiarity, famReason := scoreRouteFamiliarity(input)
	performance, perfReason := scorePerformance(input)
	fit, fitReason := scoreAvailabilityFit(input)
	margin, credReason := scoreCredentialMargin(input)

	subs := []float64{familiarity, performance, fit, margin}
	weights := input.Params.Weights.vector()
	total := roundScore(clamp(floats.Dot(weights, subs), 0, 100))

	reasons := []app.ScoreReason{famReason, perfReason, fitReason, credReason}
	for i := range reasons {
		delta := weights[i] * subs[i]
		reasons[i].WeightDelta = &delta
	}

	return ScoredCandidate{
		Pair: domain.CandidatePair{
			DriverID:  input.Driver.ID,
			VehicleID: input.VehicleID,
			Scores: domain.ScoreBreakdown{
				RouteFamiliarity: familiarity,
				Performance:      performance,
				AvailabilityFit:  fit,
				CredentialMargin: margin,
			},
			TotalScore:  total,
			Reason:      summarizeReasons(reasons),
			IsAvailable: true,
		},
		Reasons: reasons,
	}
}

func scoreRouteFamiliarity(input ScoringInput) (float64, app.ScoreReason) {
	if input.History == nil || input.History.RouteCompletionRates == nil {
		return 0, app.ScoreReason{Code: app.ReasonRouteUnfamiliar, Message: "no trips on this route"}
	}
	rate := input.History.RouteCompletionRates[input.RouteID]
	score := roundScore(clamp(rate*100, 0, 100))
	if score == 0 {
		return 0, app.ScoreReason{Code: app.ReasonRouteUnfamiliar, Message: "no trips on this route"}
	}
	return score, app.ScoreReason{
		Code:    app.ReasonRouteFamiliar,
		Message: fmt.Sprintf("%.0f%% of trips on this route", score),
	}
}

func scorePerformance(input ScoringInput) (float64, app.ScoreReason) {
	if input.History == nil || input.History.OnTimeRate == nil {
		return input.Params.NeutralPerformance, app.ScoreReason{
			Code:    app.ReasonNoHistory,
			Message: "no recent history, neutral performance",
		}
	}
	score := roundScore(clamp(*input.History.OnTimeRate*100, 0, 100))
	code := app.ReasonStrongPerformance
	if score < 70 {
		code = app.ReasonWeakPerformance
	}
	return score, app.ScoreReason{Code: code, Message: fmt.Sprintf("%.0f%% on time", score)}
}

// scoreAvailabilityFit penalises working windows that hug the trip. Slack of
// ComfortMargin or more on the tighter side scores 100; zero slack scores 50.
func scoreAvailabilityFit(input ScoringInput) (float64, app.ScoreReason) {
	w, ok := input.Driver.CoveringWindow(input.Trip)
	if !ok {
		return 0, app.ScoreReason{Code: app.ReasonTightWindow, Message: "working hours do not cover trip"}
	}
	day := domain.TruncateToDate(input.Trip.Start)
	startMin := int(input.Trip.Start.UTC().Sub(day) / time.Minute)
	endMin := int(input.Trip.End.UTC().Sub(day) / time.Minute)
	slack := time.Duration(min(startMin-w.StartMinute, w.EndMinute-endMin)) * time.Minute

	comfort := input.Params.ComfortMargin
	if comfort <= 0 || slack >= comfort {
		return 100, app.ScoreReason{Code: app.ReasonComfortableWindow, Message: "comfortable working window"}
	}
	score := roundScore(50 + 50*float64(slack)/float64(comfort))
	return score, app.ScoreReason{
		Code:    app.ReasonTightWindow,
		Message: fmt.Sprintf("only %d min slack in working window", int(slack.Minutes())),
	}
}

func scoreCredentialMargin(input ScoringInput) (float64, app.ScoreReason) {
	remaining := input.Driver.CredentialExpiry().Sub(input.Trip.End)
	if remaining <= 0 {
		return 0, app.ScoreReason{Code: app.ReasonCredentialsExpired, Message: "credentials expired"}
	}
	horizon := input.Params.CredentialHorizon
	if horizon <= 0 || remaining >= horizon {
		return 100, app.ScoreReason{Code: app.ReasonCredentialsValid, Message: "credentials valid"}
	}
	score := roundScore(100 * float64(remaining) / float64(horizon))
	days := int(remaining.Hours() / 24)
	return score, app.ScoreReason{
		Code:    app.ReasonCredentialsExpiring,
		Message: fmt.Sprintf("credentials expire in %d days", days),
	}
}

func summarizeReasons(reasons []app.ScoreReason) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, r.Message)
	}
	return strings.Join(parts, "; ")
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
