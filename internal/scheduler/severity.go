package scheduler

import (
	"fmt"
	"time"

	"github.com/fleetdesk/leaveguard/internal/domain"
)

// SeverityBands maps affected student counts to severity levels. A count
// below MediumMin is low.
type SeverityBands struct {
	MediumMin      int
	HighMin        int
	CriticalMin    int
	EscalationLead time.Duration
}

func DefaultSeverityBands() SeverityBands {
	return SeverityBands{
		MediumMin:      1,
		HighMin:        11,
		CriticalMin:    31,
		EscalationLead: 24 * time.Hour,
	}
}

func (b SeverityBands) Validate() error {
	if b.MediumMin < 1 || b.HighMin <= b.MediumMin || b.CriticalMin <= b.HighMin {
		return fmt.Errorf("severity bands must be strictly increasing from 1: medium=%d high=%d critical=%d",
			b.MediumMin, b.HighMin, b.CriticalMin)
	}
	if b.EscalationLead < 0 {
		return fmt.Errorf("severity escalation lead must not be negative: %s", b.EscalationLead)
	}
	return nil
}

// BaseSeverity classifies by affected students only.
func BaseSeverity(students int, b SeverityBands) domain.Severity {
	switch {
	case students >= b.CriticalMin:
		return domain.SeverityCritical
	case students >= b.HighMin:
		return domain.SeverityHigh
	case students >= b.MediumMin:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

type SeverityInput struct {
	AffectedStudents int
	TripStart        time.Time
	RequestedAt      time.Time
}

type SeverityResult struct {
	Level     domain.Severity
	Base      domain.Severity
	Escalated bool
}

// ClassifySeverity applies the student bands and escalates one level when
// the trip starts less than EscalationLead after the request was submitted.
func ClassifySeverity(in SeverityInput, b SeverityBands) SeverityResult {
	base := BaseSeverity(in.AffectedStudents, b)
	res := SeverityResult{Level: base, Base: base}
	if in.TripStart.Sub(in.RequestedAt) < b.EscalationLead {
		res.Level = base.Escalate()
		res.Escalated = true
	}
	return res
}
