package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/codecycle/pkg/models"
)

// Growth factors applied to the current interval on repeat reviews
const (
	StruggledFactor = 1.2
	SolvedFactor    = 1.5
	InstantFactor   = 2
)

// Interval floors on repeat reviews
const (
	minStruggledInterval = 1
	minSolvedInterval    = 2
)

// firstReviewIntervals is the table used when a problem is reviewed for the first time
var firstReviewIntervals = map[models.ReviewOutcome]int{
	models.OutcomeFailed:    1,
	models.OutcomeStruggled: 1,
	models.OutcomeSolved:    2,
	models.OutcomeInstant:   4,
}

// NextInterval computes the next review delay for an outcome and the date it falls on.
// The date is now plus the interval in days, truncated to midnight in now's location.
// A repeat review whose current interval has not started (< 1) uses the first-review table.
func NextInterval(currentInterval int, outcome models.ReviewOutcome, isFirstReview bool, now time.Time) (int, time.Time) {
	if currentInterval < 1 {
		isFirstReview = true
	}

	var next int
	if isFirstReview {
		next = firstReviewIntervals[outcome]
	} else {
		switch outcome {
		case models.OutcomeFailed:
			next = 1
		case models.OutcomeStruggled:
			next = maxInt(minStruggledInterval, roundInterval(currentInterval, StruggledFactor))
		case models.OutcomeSolved:
			next = maxInt(minSolvedInterval, roundInterval(currentInterval, SolvedFactor))
		case models.OutcomeInstant:
			next = currentInterval * InstantFactor
		}
	}

	return next, StartOfDay(now).AddDate(0, 0, next)
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// roundInterval multiplies and rounds half away from zero
func roundInterval(interval int, factor float64) int {
	return int(math.Round(float64(interval) * factor))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
