package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadTimezone(name)
	require.NoError(t, err)
	return loc
}

func TestLoadTimezone(t *testing.T) {
	loc, err := LoadTimezone("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	_, err = LoadTimezone("")
	assert.Error(t, err)

	_, err = LoadTimezone("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestNextOccurrenceSameDay(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 06:00 EST on Jan 15 is 11:00 UTC; an 08:00 schedule is still ahead.
	after := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
	next := NextOccurrence(8, 0, ny, after)
	assert.Equal(t, time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrenceRollsToNextDay(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 2024-01-15T20:00:00Z is 15:00 EST, past an 08:00 schedule, so the
	// next occurrence is 08:00 EST the following day.
	after := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	next := NextOccurrence(8, 0, ny, after)
	assert.Equal(t, time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC), next)

	// Advancing with the dispatched occurrence as the reference lands
	// exactly one local day later.
	next2 := NextOccurrence(8, 0, ny, next)
	assert.Equal(t, time.Date(2024, 1, 17, 13, 0, 0, 0, time.UTC), next2)
}

func TestNextOccurrenceIsStrictlyAfterReference(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	occurrence := time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC)
	next := NextOccurrence(8, 0, ny, occurrence)
	assert.True(t, next.After(occurrence))
	assert.Equal(t, time.Date(2024, 1, 17, 13, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrenceSpringForwardGap(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 02:30 does not exist on 2024-03-10 in New York; clocks jump from
	// 02:00 EST to 03:00 EDT at 07:00 UTC. The occurrence resolves to the
	// first valid instant after the gap.
	after := time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC) // midnight EST
	next := NextOccurrence(2, 30, ny, after)
	assert.Equal(t, time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC), next)

	// The day after, 02:30 exists again (EDT).
	next2 := NextOccurrence(2, 30, ny, next)
	assert.Equal(t, time.Date(2024, 3, 11, 6, 30, 0, 0, time.UTC), next2)
}

func TestNextOccurrenceAcrossSpringForward(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 08:00 EST on Mar 9 is 13:00 UTC; 08:00 EDT on Mar 10 is 12:00 UTC.
	// The UTC gap shrinks to 23h but the local spacing stays one day.
	occurrence := time.Date(2024, 3, 9, 13, 0, 0, 0, time.UTC)
	next := NextOccurrence(8, 0, ny, occurrence)
	assert.Equal(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrenceAcrossFallBack(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 08:00 EDT on Nov 2 is 12:00 UTC; 08:00 EST on Nov 3 is 13:00 UTC.
	occurrence := time.Date(2024, 11, 2, 12, 0, 0, 0, time.UTC)
	next := NextOccurrence(8, 0, ny, occurrence)
	assert.Equal(t, time.Date(2024, 11, 3, 13, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrenceAmbiguousWallTime(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 01:30 occurs twice on 2024-11-03. Whichever mapping the zone lookup
	// picks, the result must read 01:30 on the wall and be strictly after
	// the reference; only one occurrence fires for the day.
	after := time.Date(2024, 11, 3, 4, 0, 0, 0, time.UTC) // midnight EDT
	next := NextOccurrence(1, 30, ny, after)
	assert.True(t, next.After(after))
	local := next.In(ny)
	assert.Equal(t, 1, local.Hour())
	assert.Equal(t, 30, local.Minute())

	next2 := NextOccurrence(1, 30, ny, next)
	assert.Equal(t, 4, next2.In(ny).Day())
}

func TestNextOccurrenceUTCMidnight(t *testing.T) {
	after := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	next := NextOccurrence(0, 0, time.UTC, after)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrenceSpacingProperty(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// Walk a year of daily advances; every step lands on the scheduled
	// wall time and moves forward.
	cur := NextOccurrence(9, 15, ny, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	for i := 0; i < 365; i++ {
		next := NextOccurrence(9, 15, ny, cur)
		require.True(t, next.After(cur))
		local := next.In(ny)
		require.Equal(t, 9, local.Hour())
		require.Equal(t, 15, local.Minute())
		require.False(t, SameLocalDay(cur, next, ny))
		cur = next
	}
}

func TestSameLocalDay(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 03:00 UTC and 23:00 UTC on Jan 16 are different local days in New
	// York (Jan 15 evening vs Jan 16 evening).
	a := time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 16, 23, 0, 0, 0, time.UTC)
	assert.False(t, SameLocalDay(a, b, ny))
	assert.True(t, SameLocalDay(a, a.Add(-2*time.Hour), ny))
}

func TestStartOfLocalDay(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	instant := time.Date(2024, 1, 16, 23, 0, 0, 0, time.UTC) // 18:00 EST
	start := StartOfLocalDay(instant, ny)
	assert.Equal(t, time.Date(2024, 1, 16, 5, 0, 0, 0, time.UTC), start)
}
