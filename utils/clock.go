package utils

import (
	"fmt"
	"time"
)

// LoadTimezone resolves an IANA timezone name, rejecting the empty string so
// callers never silently fall back to the host zone.
func LoadTimezone(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("timezone name is empty")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// NextOccurrence returns the earliest UTC instant strictly after `after` whose
// wall clock in loc reads hour:minute. The computation is done with zoned
// construction, never fixed offsets, so DST transitions are handled by the
// zone database:
//
//   - If the wall time does not exist on some day (spring-forward gap), the
//     occurrence resolves to the first valid instant after the gap.
//   - If the wall time occurs twice (fall-back), the earlier instant wins.
//
// Because the result is strictly after the reference, advancing with the
// previous occurrence as reference always lands exactly one local day later.
func NextOccurrence(hour, minute int, loc *time.Location, after time.Time) time.Time {
	local := after.In(loc)
	for days := 0; ; days++ {
		candidate := atWallClock(local.Year(), local.Month(), local.Day()+days, hour, minute, loc)
		if candidate.After(after) {
			return candidate.UTC()
		}
	}
}

// atWallClock builds the instant for a wall-clock time on a given local date.
// time.Date normalizes a nonexistent wall time by sliding it across the DST
// gap; when that happens the start of the new zone (the first valid instant)
// is used instead.
func atWallClock(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Hour() != hour || t.Minute() != minute {
		start, _ := t.ZoneBounds()
		return start
	}
	return t
}

// SameLocalDay reports whether two instants fall on the same calendar day
// as observed in loc.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// StartOfLocalDay returns the UTC instant at which the calendar day containing
// t begins in loc.
func StartOfLocalDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
}

// StartOfNextLocalDay returns the UTC instant at which the calendar day after
// the one containing t begins in loc.
func StartOfNextLocalDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc).UTC()
}
