// Package dates resolves caller-supplied calendar dates into absolute UTC
// instant ranges, honouring an IANA timezone. Report queries filter on UTC
// columns, so every date parameter passes through here exactly once.
package dates

import (
	"time"

	appErrors "github.com/aulago/aula-api/pkg/errors"
)

// DateLayout is the wire format for all calendar date parameters.
const DateLayout = "2006-01-02"

// DefaultTimezone is applied when the caller supplies no zone.
const DefaultTimezone = "UTC"

// Range is an inclusive UTC instant window covering one or more local days.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// ResolveRange converts a calendar date into the UTC instants of local
// midnight and local end-of-day (23:59:59.999) in the given zone. When a
// daylight-saving transition removes or repeats the wall-clock boundary the
// zone's canonical normalisation applies.
func ResolveRange(date, timezone string) (Range, error) {
	loc, err := loadLocation(timezone)
	if err != nil {
		return Range{}, err
	}
	day, err := parseDate(date)
	if err != nil {
		return Range{}, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 999000000, loc)
	return Range{Start: start.UTC(), End: end.UTC()}, nil
}

// ResolveSpan resolves [start-of-startDate, end-of-endDate] in the given
// zone. A start date after the end date is rejected.
func ResolveSpan(startDate, endDate, timezone string) (Range, error) {
	first, err := ResolveRange(startDate, timezone)
	if err != nil {
		return Range{}, err
	}
	last, err := ResolveRange(endDate, timezone)
	if err != nil {
		return Range{}, err
	}
	if first.Start.After(last.End) {
		return Range{}, appErrors.Clone(appErrors.ErrValidation, "start date is after end date")
	}
	return Range{Start: first.Start, End: last.End}, nil
}

// FormatLocalDate is the symmetric inverse of ResolveRange: it renders a
// stored UTC instant as the local calendar date of the given zone.
func FormatLocalDate(t time.Time, timezone string) (string, error) {
	loc, err := loadLocation(timezone)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(DateLayout), nil
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown timezone")
	}
	return loc, nil
}

func parseDate(date string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date format, expected YYYY-MM-DD")
	}
	return parsed, nil
}
