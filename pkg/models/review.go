package models

import (
	"strings"
	"time"
)

// ReviewOutcome is the learner's self-reported recall quality
type ReviewOutcome string

const (
	OutcomeFailed    ReviewOutcome = "FAILED"
	OutcomeStruggled ReviewOutcome = "STRUGGLED"
	OutcomeSolved    ReviewOutcome = "SOLVED"
	OutcomeInstant   ReviewOutcome = "INSTANT"
)

// ReviewOutcomes lists the outcomes from weakest to strongest recall
var ReviewOutcomes = []ReviewOutcome{OutcomeFailed, OutcomeStruggled, OutcomeSolved, OutcomeInstant}

// Valid reports whether o is one of the enumerated outcomes
func (o ReviewOutcome) Valid() bool {
	switch o {
	case OutcomeFailed, OutcomeStruggled, OutcomeSolved, OutcomeInstant:
		return true
	}
	return false
}

// ParseReviewOutcome parses an outcome name case-insensitively
func ParseReviewOutcome(s string) (ReviewOutcome, bool) {
	o := ReviewOutcome(strings.ToUpper(strings.TrimSpace(s)))
	return o, o.Valid()
}

// ReviewRecord tracks one user's review schedule for one problem
type ReviewRecord struct {
	UserID       string     `json:"userId" db:"user_id"`
	ProblemID    int64      `json:"problemId" db:"problem_id"`
	LastReviewed *time.Time `json:"lastReviewed" db:"last_reviewed"`
	IntervalDays int        `json:"intervalDays" db:"interval_days"` // 0 means not yet started
	NextReviewAt time.Time  `json:"nextReviewAt" db:"next_review_at"` // Always a midnight
	Version      int64      `json:"-" db:"version"`                   // Optimistic concurrency counter
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// DueReview is a review record joined with its problem
type DueReview struct {
	Record  ReviewRecord
	Problem Problem
}

// UpsertReview describes one write of a review record.
// ExpectedVersion is zero when the record is being created.
type UpsertReview struct {
	UserID           string
	ProblemID        int64
	ExpectedVersion  int64
	Outcome          ReviewOutcome
	PreviousInterval int
	LastReviewed     time.Time
	IntervalDays     int
	NextReviewAt     time.Time
}

// ReviewLog is one submitted review, kept for statistics and export
type ReviewLog struct {
	ID               int64         `json:"id" db:"id"`
	UserID           string        `json:"userId" db:"user_id"`
	ProblemID        int64         `json:"problemId" db:"problem_id"`
	Slug             string        `json:"slug" db:"slug"`
	Title            string        `json:"title" db:"title"`
	Outcome          ReviewOutcome `json:"outcome" db:"outcome"`
	PreviousInterval int           `json:"previousInterval" db:"previous_interval"`
	NextInterval     int           `json:"nextInterval" db:"next_interval"`
	ReviewedAt       time.Time     `json:"reviewedAt" db:"reviewed_at"`
}

// ReviewStats summarizes a user's review activity
type ReviewStats struct {
	Tracked          int                   `json:"tracked"`          // Problems with a review record
	DueToday         int                   `json:"dueToday"`         // Due and not yet reviewed today
	ReviewedToday    int                   `json:"reviewedToday"`
	ReviewsLast7Days int                   `json:"reviewsLast7Days"`
	CatalogSize      int                   `json:"catalogSize"`
	Outcomes         map[ReviewOutcome]int `json:"outcomes"`
}
