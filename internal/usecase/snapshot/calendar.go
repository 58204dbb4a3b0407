package snapshot

import (
	"time"

	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// MidMonthDay is the mid-month cutoff day
const MidMonthDay = 15

// GenerateCutoffs returns the 15th and the last day of every month from January of
// startYear through the month of today, ascending. Cutoffs after today are dropped.
func GenerateCutoffs(startYear int, today time.Time) []time.Time {
	today = domain.Day(today)
	if startYear > today.Year() {
		return nil
	}

	cutoffs := make([]time.Time, 0, (today.Year()-startYear+1)*24)
	current := domain.NewDate(startYear, time.January, 1)
	endMonth := domain.NewDate(today.Year(), today.Month(), 1)

	for !current.After(endMonth) {
		mid := domain.NewDate(current.Year(), current.Month(), MidMonthDay)
		// Day 0 of the next month normalizes to the last day of this one
		last := domain.NewDate(current.Year(), current.Month()+1, 0)

		if !mid.After(today) {
			cutoffs = append(cutoffs, mid)
		}
		if !last.After(today) {
			cutoffs = append(cutoffs, last)
		}

		current = current.AddDate(0, 1, 0)
	}

	return cutoffs
}
