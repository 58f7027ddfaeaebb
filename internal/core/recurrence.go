package core

import "time"

// NextOccurrence returns the next scheduled date after t for the given
// interval. It is pure and deterministic so recurrence processing can be
// replayed safely.
//
// Month-end policy: MONTHLY and YEARLY use time.AddDate, which
// normalizes overflowing days forward (Jan 31 + 1 month = Mar 2/3).
// Dates roll into the following month rather than clamping.
func NextOccurrence(t time.Time, iv Interval) time.Time {
	switch iv {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	case Yearly:
		return t.AddDate(1, 0, 0)
	}
	return t
}
