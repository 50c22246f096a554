package zeroview

import (
	"math/rand/v2"
	"time"
)

// Epoch is the earliest upper bound a random window may get.
var Epoch = time.Date(2006, 1, 1, 0, 0, 0, 0, time.UTC)

// minAgeDays keeps random windows at least a year in the past.
const minAgeDays = 365

const day = 24 * time.Hour

// Window is a publish-date range rendered for the search API.
type Window struct {
	Before string
	After  string
}

// ChooseRandomDate picks a day uniformly from [Epoch, today-365d], both ends
// inclusive. Today is the UTC date of now.
func ChooseRandomDate(rng *rand.Rand, now time.Time) time.Time {
	today := midnightUTC(now)
	span := int(today.Sub(Epoch)/day) - minAgeDays
	if span <= 0 {
		return Epoch
	}
	return Epoch.AddDate(0, 0, rng.IntN(span+1))
}

// ComputeEarlierDate returns the date days before d.
func ComputeEarlierDate(d time.Time, days int) time.Time {
	return d.AddDate(0, 0, -days)
}

// FormatRFC3339Date renders the calendar date of d at midnight UTC,
// e.g. "2014-10-18T00:00:00Z".
func FormatRFC3339Date(d time.Time) string {
	return d.Format("2006-01-02") + "T00:00:00Z"
}

// NewWindow builds the range (before-days, before].
func NewWindow(before time.Time, days int) Window {
	return Window{
		Before: FormatRFC3339Date(before),
		After:  FormatRFC3339Date(ComputeEarlierDate(before, days)),
	}
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
