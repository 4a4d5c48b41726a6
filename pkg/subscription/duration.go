package subscription

import "time"

// LifetimeEndDate is the end date stored for lifetime grants.
// It is a concrete instant so end dates always compare.
var LifetimeEndDate = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// ResolveEndDate maps a plan's duration to the end of the access window that
// starts at start. Rules, in order:
//   - lifetime scope: LifetimeEndDate
//   - zero duration (one-time purchase): start
//   - duration below one month: start plus one day
//   - otherwise: start plus the given number of calendar months, clamped to
//     the last day of a shorter target month (Jan 31 + 1 month = Feb 28/29)
//
// Durations are validated by the catalog, so there is no error path.
func ResolveEndDate(plan Plan, scope LicenseScope, start time.Time) time.Time {
	switch {
	case scope == LicenseScopeLifetime:
		return LifetimeEndDate
	case plan.IsOneTime():
		return start
	case plan.IsDayPass():
		return start.AddDate(0, 0, 1)
	default:
		return AddMonths(start, int(plan.DurationMonths.IntPart()))
	}
}

// AddMonths advances t by n calendar months, keeping the time of day and
// clamping the day to the length of the target month.
// Unlike time.AddDate it never overflows (Jan 31 + 1 month is not Mar 3).
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// Day 1 never overflows, so this normalizes year/month only.
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	targetYear, targetMonth, _ := first.Date()

	if last := daysIn(targetYear, targetMonth, t.Location()); day > last {
		day = last
	}
	return time.Date(targetYear, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
