package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for leave ranges.
const DateLayout = "2006-01-02"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval returns [start, end) or a ValidationError when end precedes start.
func NewInterval(start, end time.Time) (Interval, error) {
	if end.Before(start) {
		return Interval{}, &ValidationError{
			Field:   "end",
			Message: fmt.Sprintf("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)),
		}
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) share any instant.
// Empty ranges overlap nothing.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aStart.Before(aEnd) || !bStart.Before(bEnd) {
		return false
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.End, o.Start, o.End)
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func (i Interval) IsEmpty() bool {
	return !i.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	if i.IsEmpty() {
		return 0
	}
	return i.End.Sub(i.Start)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

// TruncateToDate drops the clock part of t, in UTC.
func TruncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateSpan converts an inclusive calendar range into the half-open instant
// interval [startDate 00:00, endDate+1d 00:00) in UTC.
func DateSpan(startDate, endDate time.Time) Interval {
	return Interval{
		Start: TruncateToDate(startDate),
		End:   TruncateToDate(endDate).AddDate(0, 0, 1),
	}
}

// ParseDate parses a YYYY-MM-DD string as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return t, nil
}
