// Package period provides the date-range arithmetic for report runs:
// named presets, explicit ranges, comparison-period derivation, and
// per-source reporting-lag shifts.
package period

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Preset names accepted by Resolve.
const (
	PresetLastWeek    = "last-week"
	PresetLastMonth   = "last-month"
	PresetLastQuarter = "last-quarter"
)

// Range is an inclusive calendar date range. Both bounds are truncated to
// midnight UTC; the time-of-day component carries no meaning.
type Range struct {
	Start time.Time
	End   time.Time
}

// Resolve turns either a preset name or an explicit start/end pair into a
// Range. Presets and explicit dates are mutually exclusive. End dates in
// the future clamp to yesterday: providers have no data for today yet.
func Resolve(preset, start, end string, now time.Time) (Range, error) {
	today := midnight(now)
	yesterday := today.AddDate(0, 0, -1)

	if preset != "" && (start != "" || end != "") {
		return Range{}, fmt.Errorf("period: preset %q and explicit dates are mutually exclusive", preset)
	}

	switch preset {
	case "":
		// explicit dates below
	case PresetLastWeek:
		monday := today.AddDate(0, 0, -(isoWeekday(today) - 1))
		return Range{Start: monday.AddDate(0, 0, -7), End: monday.AddDate(0, 0, -1)}, nil
	case PresetLastMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Range{Start: first.AddDate(0, -1, 0), End: first.AddDate(0, 0, -1)}, nil
	case PresetLastQuarter:
		q := (int(today.Month()) - 1) / 3
		first := time.Date(today.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
		return Range{Start: first.AddDate(0, -3, 0), End: first.AddDate(0, 0, -1)}, nil
	default:
		return Range{}, fmt.Errorf("period: unknown preset %q", preset)
	}

	if start == "" || end == "" {
		return Range{}, fmt.Errorf("period: explicit range needs both start and end dates")
	}
	s, err := time.ParseInLocation(dateLayout, start, time.UTC)
	if err != nil {
		return Range{}, fmt.Errorf("period: invalid start date %q: %w", start, err)
	}
	e, err := time.ParseInLocation(dateLayout, end, time.UTC)
	if err != nil {
		return Range{}, fmt.Errorf("period: invalid end date %q: %w", end, err)
	}
	if e.After(yesterday) {
		e = yesterday
	}
	if s.After(e) {
		return Range{}, fmt.Errorf("period: start %s is after end %s", s.Format(dateLayout), e.Format(dateLayout))
	}
	return Range{Start: s, End: e}, nil
}

// Previous returns the range of equal length ending the day before r
// starts. Used for comparison periods; the two ranges never overlap.
func (r Range) Previous() Range {
	d := r.Days()
	return Range{Start: r.Start.AddDate(0, 0, -d), End: r.Start.AddDate(0, 0, -1)}
}

// ShiftBack moves the whole range back by the given number of days,
// preserving its length. Sources with delayed reporting (search consoles
// trail by about three days) use this to fetch a window that has data.
func (r Range) ShiftBack(days int) Range {
	if days <= 0 {
		return r
	}
	return Range{Start: r.Start.AddDate(0, 0, -days), End: r.End.AddDate(0, 0, -days)}
}

// Days returns the number of calendar days covered, inclusive.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// String formats the range as "2026-08-17 to 2026-08-23".
func (r Range) String() string {
	return r.Start.Format(dateLayout) + " to " + r.End.Format(dateLayout)
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// isoWeekday maps Go's Sunday-first weekday to ISO numbering, Monday=1.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
