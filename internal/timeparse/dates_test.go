package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chicago = mustLoad("America/Chicago")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Wednesday.
var wednesday = time.Date(2026, 9, 2, 8, 0, 0, 0, chicago)

func TestResolveDate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{"iso date", "2026-09-10", time.Date(2026, 9, 10, 0, 0, 0, 0, chicago)},
		{"today", "today", time.Date(2026, 9, 2, 0, 0, 0, 0, chicago)},
		{"tomorrow", "tomorrow", time.Date(2026, 9, 3, 0, 0, 0, 0, chicago)},
		{"bare friday is nearest", "friday", time.Date(2026, 9, 4, 0, 0, 0, 0, chicago)},
		{"next friday skips nearest", "next friday", time.Date(2026, 9, 11, 0, 0, 0, 0, chicago)},
		{"bare wednesday excludes today", "wednesday", time.Date(2026, 9, 9, 0, 0, 0, 0, chicago)},
		{"next week is next monday", "next week", time.Date(2026, 9, 7, 0, 0, 0, 0, chicago)},
		{"this weekend starts saturday", "this weekend", time.Date(2026, 9, 5, 0, 0, 0, 0, chicago)},
		{"month day this year", "september 20", time.Date(2026, 9, 20, 0, 0, 0, 0, chicago)},
		{"month day abbreviated", "sep 20th", time.Date(2026, 9, 20, 0, 0, 0, 0, chicago)},
		{"month day already passed rolls to next year", "march 5", time.Date(2027, 3, 5, 0, 0, 0, 0, chicago)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveDate(tt.text, wednesday, chicago)
			require.True(t, ok)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestResolveDateUnparseable(t *testing.T) {
	for _, text := range []string{"", "whenever works", "the day after my birthday"} {
		_, ok := ResolveDate(text, wednesday, chicago)
		assert.False(t, ok, "expected %q to be unparseable", text)
	}
}

func TestResolveDateRangeWeekend(t *testing.T) {
	r, ok := ResolveDateRange("this weekend", wednesday, chicago)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 9, 5, 0, 0, 0, 0, chicago), r.From)
	assert.Equal(t, time.Date(2026, 9, 6, 0, 0, 0, 0, chicago), r.To)
	assert.True(t, r.Contains(time.Date(2026, 9, 6, 0, 0, 0, 0, chicago)))
	assert.False(t, r.Contains(time.Date(2026, 9, 7, 0, 0, 0, 0, chicago)))

	// On a Sunday the weekend collapses to that day.
	sunday := time.Date(2026, 9, 6, 9, 0, 0, 0, chicago)
	r, ok = ResolveDateRange("this weekend", sunday, chicago)
	require.True(t, ok)
	assert.True(t, r.Single())
	assert.Equal(t, time.Date(2026, 9, 6, 0, 0, 0, 0, chicago), r.From)
}

func TestResolveDateRangeNextWeekOpenEnded(t *testing.T) {
	r, ok := ResolveDateRange("sometime next week", wednesday, chicago)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, chicago), r.From)
	assert.True(t, r.To.IsZero())
	assert.True(t, r.Contains(time.Date(2026, 10, 1, 0, 0, 0, 0, chicago)))
}

func TestResolveDateUsesCalendarTimezone(t *testing.T) {
	// 11 PM Chicago on Sep 2 is already Sep 3 in UTC; "tomorrow" must be
	// computed from the calendar's wall clock, not the server's.
	lateNight := time.Date(2026, 9, 3, 4, 30, 0, 0, time.UTC)
	got, ok := ResolveDate("tomorrow", lateNight, chicago)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 9, 3, 0, 0, 0, 0, chicago), got)
}
