package app

// ScoreReasonCode labels one contribution to a candidate pair's score.
type ScoreReasonCode string

const (
	ReasonRouteFamiliar       ScoreReasonCode = "ROUTE_FAMILIAR"
	ReasonRouteUnfamiliar     ScoreReasonCode = "ROUTE_UNFAMILIAR"
	ReasonStrongPerformance   ScoreReasonCode = "STRONG_PERFORMANCE"
	ReasonWeakPerformance     ScoreReasonCode = "WEAK_PERFORMANCE"
	ReasonNoHistory           ScoreReasonCode = "NO_HISTORY"
	ReasonComfortableWindow   ScoreReasonCode = "COMFORTABLE_WINDOW"
	ReasonTightWindow         ScoreReasonCode = "TIGHT_WINDOW"
	ReasonCredentialsValid    ScoreReasonCode = "CREDENTIALS_VALID"
	ReasonCredentialsExpiring ScoreReasonCode = "CREDENTIALS_EXPIRING"
	ReasonCredentialsExpired  ScoreReasonCode = "CREDENTIALS_EXPIRED"
)

type ScoreReason struct {
	Code        ScoreReasonCode
	Message     string
	WeightDelta *float64
}
