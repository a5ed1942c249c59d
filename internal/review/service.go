// Package review implements the daily review scheduling engine: building
// today's queue, recording review outcomes and validating user settings.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/example/codecycle/pkg/models"
)

// Catalog reads problem metadata
type Catalog interface {
	CountProblems(ctx context.Context) (int, error)
	// FindProblemBySlug returns nil, nil when the slug is unknown.
	FindProblemBySlug(ctx context.Context, slug string) (*models.Problem, error)
	// ListProblemsExcluding returns problems whose slug is not in exclude,
	// ordered by solvedAt ascending (nulls first) then slug.
	ListProblemsExcluding(ctx context.Context, exclude []string, limit int) ([]*models.Problem, error)
	// ListEligibleFresh is ListProblemsExcluding restricted to problems
	// solved on or before cutoff or with no solve date.
	ListEligibleFresh(ctx context.Context, exclude []string, cutoff time.Time, limit int) ([]*models.Problem, error)
	ListProblems(ctx context.Context) ([]*models.Problem, error)
}

// Repository persists per-user review records
type Repository interface {
	CountReviewedSince(ctx context.Context, userID string, since time.Time) (int, error)
	ListReviewedSlugs(ctx context.Context, userID string) ([]string, error)
	// ListDue returns records with nextReviewAt <= asOf that were last reviewed
	// before excludeReviewedSince, ordered by nextReviewAt then slug.
	ListDue(ctx context.Context, userID string, asOf, excludeReviewedSince time.Time) ([]*models.DueReview, error)
	// FindReview returns nil, nil when the user has never reviewed the problem.
	FindReview(ctx context.Context, userID string, problemID int64) (*models.ReviewRecord, error)
	// UpsertReview writes the record and appends a review log atomically.
	// It returns ErrConflict when the stored version differs from ExpectedVersion.
	UpsertReview(ctx context.Context, upsert *models.UpsertReview) (*models.ReviewRecord, error)
}

// SettingsStore persists user settings
type SettingsStore interface {
	UpdateSettings(ctx context.Context, userID string, update *models.UpdateSettings) (*models.Settings, error)
}

// StatsReader aggregates review activity
type StatsReader interface {
	CountTracked(ctx context.Context, userID string) (int, error)
	CountDue(ctx context.Context, userID string, asOf, excludeReviewedSince time.Time) (int, error)
	CountOutcomesSince(ctx context.Context, userID string, since time.Time) (map[models.ReviewOutcome]int, error)
}

// Policy selects how due and new items share the daily goal
type Policy string

const (
	// PolicyDueFirst puts every due review first and fills leftover slots with new items
	PolicyDueFirst Policy = "due-first"
	// PolicyReserveNew reserves up to half of the goal for new items ahead of due reviews
	PolicyReserveNew Policy = "reserve-new"
)

// ParsePolicy validates a policy name
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyDueFirst:
		return PolicyDueFirst, nil
	case PolicyReserveNew:
		return PolicyReserveNew, nil
	}
	return "", fmt.Errorf("unknown queue policy %q", s)
}

// Options configures a Service
type Options struct {
	Timeout  time.Duration    // Budget for the storage calls of one operation
	Location *time.Location   // Calendar used for "today"
	Policy   Policy
	Now      func() time.Time // Clock used by submissions
}

// DefaultTimeout bounds one queue build or submission
const DefaultTimeout = 5 * time.Second

// Service is the review scheduling engine
type Service struct {
	catalog  Catalog
	repo     Repository
	settings SettingsStore
	stats    StatsReader
	opts     Options
}

// NewService creates a review engine over the given stores
func NewService(catalog Catalog, repo Repository, settings SettingsStore, stats StatsReader, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Policy == "" {
		opts.Policy = PolicyDueFirst
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		catalog:  catalog,
		repo:     repo,
		settings: settings,
		stats:    stats,
		opts:     opts,
	}
}

// Policy returns the queue policy in use
func (s *Service) Policy() Policy {
	return s.opts.Policy
}

// Now returns the current time in the service calendar
func (s *Service) Now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.Timeout)
}
