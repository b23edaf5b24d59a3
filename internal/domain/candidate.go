package domain

import "time"

// ScoreBreakdown holds the normalised sub-scores, each in [0,100].
type ScoreBreakdown struct {
	RouteFamiliarity float64
	Performance      float64
	AvailabilityFit  float64
	CredentialMargin float64
}

// CandidatePair is a (driver, vehicle) replacement considered for one
// conflict. Ranked pairs persisted against a conflict are its suggestions;
// ID, ConflictID, Rank and CreatedAt are set only then.
type CandidatePair struct {
	ID          string
	ConflictID  string
	Rank        int
	DriverID    string
	VehicleID   string
	Scores      ScoreBreakdown
	TotalScore  float64
	Reason      string
	IsAvailable bool
	CreatedAt   time.Time
}

// SamePair reports whether both pairs name the same driver and vehicle.
func (p CandidatePair) SamePair(o CandidatePair) bool {
	return p.DriverID == o.DriverID && p.VehicleID == o.VehicleID
}
