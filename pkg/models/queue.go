package models

import "time"

// DateLayout is the calendar date format used in API payloads
const DateLayout = "2006-01-02"

// ReviewItem is one problem in today's queue
type ReviewItem struct {
	ProblemID    int64      `json:"problemId"`
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Difficulty   Difficulty `json:"difficulty"`
	Tags         Tags       `json:"tags"`
	IsNew        bool       `json:"isNew"`
	LastReviewed *time.Time `json:"lastReviewed"`
	IntervalDays int        `json:"intervalDays"`
	NextReviewAt *time.Time `json:"nextReviewAt,omitempty"`
}

// TodayQueue is the ordered list of problems to work through today
type TodayQueue struct {
	Date           string        `json:"date"`
	DailyGoal      int           `json:"dailyGoal"`
	CompletedToday int           `json:"completedToday"`
	Items          []*ReviewItem `json:"remaining"`
	Total          int           `json:"total"`
	GoalMet        bool          `json:"goalMet"`
}

// SubmitResult is the outcome of a submitted review
type SubmitResult struct {
	Slug         string        `json:"slug"`
	Outcome      ReviewOutcome `json:"result"`
	NextInterval int           `json:"nextInterval"`
	NextReviewAt time.Time     `json:"-"`
	NextDate     string        `json:"nextReviewAt"`
	FirstReview  bool          `json:"firstReview"`
}
