package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolvePresets(t *testing.T) {
	// A Tuesday. Complete weeks, months and quarters all lie behind it.
	now := date(2026, time.August, 25)

	tests := []struct {
		name      string
		preset    string
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "last week from a tuesday",
			preset:    PresetLastWeek,
			now:       now,
			wantStart: date(2026, time.August, 17),
			wantEnd:   date(2026, time.August, 23),
		},
		{
			name:      "last week from a monday",
			preset:    PresetLastWeek,
			now:       date(2026, time.August, 24),
			wantStart: date(2026, time.August, 17),
			wantEnd:   date(2026, time.August, 23),
		},
		{
			name:      "last week from a sunday excludes the running week",
			preset:    PresetLastWeek,
			now:       date(2026, time.August, 23),
			wantStart: date(2026, time.August, 10),
			wantEnd:   date(2026, time.August, 16),
		},
		{
			name:      "last month",
			preset:    PresetLastMonth,
			now:       now,
			wantStart: date(2026, time.July, 1),
			wantEnd:   date(2026, time.July, 31),
		},
		{
			name:      "last quarter",
			preset:    PresetLastQuarter,
			now:       now,
			wantStart: date(2026, time.April, 1),
			wantEnd:   date(2026, time.June, 30),
		},
		{
			name:      "last month across a year boundary",
			preset:    PresetLastMonth,
			now:       date(2026, time.January, 15),
			wantStart: date(2025, time.December, 1),
			wantEnd:   date(2025, time.December, 31),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.preset, "", "", tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, got.Start)
			assert.Equal(t, tt.wantEnd, got.End)
		})
	}
}

func TestResolveExplicit(t *testing.T) {
	now := date(2026, time.August, 25)

	got, err := Resolve("", "2026-08-03", "2026-08-09", now)
	require.NoError(t, err)
	assert.Equal(t, date(2026, time.August, 3), got.Start)
	assert.Equal(t, date(2026, time.August, 9), got.End)
	assert.Equal(t, 7, got.Days())
}

func TestResolveClampsFutureEnd(t *testing.T) {
	now := date(2026, time.August, 25)

	got, err := Resolve("", "2026-08-20", "2026-12-31", now)
	require.NoError(t, err)
	assert.Equal(t, date(2026, time.August, 24), got.End, "future end should clamp to yesterday")
}

func TestResolveErrors(t *testing.T) {
	now := date(2026, time.August, 25)

	tests := []struct {
		name   string
		preset string
		start  string
		end    string
	}{
		{name: "preset and explicit are exclusive", preset: PresetLastWeek, start: "2026-08-01", end: "2026-08-07"},
		{name: "unknown preset", preset: "fortnight"},
		{name: "missing end", start: "2026-08-01"},
		{name: "start after end", start: "2026-08-09", end: "2026-08-03"},
		{name: "garbage start", start: "yesterday", end: "2026-08-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.preset, tt.start, tt.end, now)
			assert.Error(t, err)
		})
	}
}

func TestPrevious(t *testing.T) {
	r := Range{Start: date(2026, time.August, 17), End: date(2026, time.August, 23)}

	prev := r.Previous()
	assert.Equal(t, date(2026, time.August, 10), prev.Start)
	assert.Equal(t, date(2026, time.August, 16), prev.End)
	assert.Equal(t, r.Days(), prev.Days())
	assert.True(t, prev.End.Before(r.Start), "comparison period must not overlap the current one")
}

func TestShiftBack(t *testing.T) {
	r := Range{Start: date(2026, time.August, 17), End: date(2026, time.August, 23)}

	shifted := r.ShiftBack(3)
	assert.Equal(t, date(2026, time.August, 14), shifted.Start)
	assert.Equal(t, date(2026, time.August, 20), shifted.End)
	assert.Equal(t, r, r.ShiftBack(0))
	assert.Equal(t, r, r.ShiftBack(-1))
}

func TestString(t *testing.T) {
	r := Range{Start: date(2026, time.August, 17), End: date(2026, time.August, 23)}
	assert.Equal(t, "2026-08-17 to 2026-08-23", r.String())
}
