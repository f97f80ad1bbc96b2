package model

import "time"

// Day truncates t to midnight UTC. Rental dates are day-granular; every
// date stored or compared by the engine goes through this first.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RentalDays returns the inclusive number of calendar days in [start, end],
// so a same-day rental counts as one day. Returns 0 for an inverted range.
func RentalDays(start, end time.Time) int {
	s := Day(start)
	e := Day(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}
