package review

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/example/codecycle/internal/spaced_repetition"
	"github.com/example/codecycle/pkg/models"
)

// maxSubmitAttempts bounds the optimistic read-compute-write retries of one submission
const maxSubmitAttempts = 8

// SubmitReview records a recall outcome for a problem and schedules its next review.
// The read of the current interval and the write of the next one are checked
// against the record version, so concurrent submissions for the same problem
// never compute from a stale interval.
func (s *Service) SubmitReview(ctx context.Context, user *models.User, slug string, outcome models.ReviewOutcome) (*models.SubmitResult, error) {
	if user == nil || user.ID == "" {
		return nil, ErrNotAuthenticated
	}
	if !outcome.Valid() {
		return nil, ErrInvalidOutcome
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.Wrap(ErrProblemNotFound, "missing slug")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	problem, err := s.catalog.FindProblemBySlug(ctx, slug)
	if err != nil {
		return nil, unavailable(err, "find problem")
	}
	if problem == nil {
		return nil, errors.Wrapf(ErrProblemNotFound, "slug %q", slug)
	}

	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		result, err := s.submitOnce(ctx, user.ID, problem, outcome)
		if !errors.Is(err, ErrConflict) {
			return result, err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, unavailable(ErrConflict, "write review record")
}

func (s *Service) submitOnce(ctx context.Context, userID string, problem *models.Problem, outcome models.ReviewOutcome) (*models.SubmitResult, error) {
	existing, err := s.repo.FindReview(ctx, userID, problem.ID)
	if err != nil {
		return nil, unavailable(err, "find review record")
	}

	isFirstReview := existing == nil
	currentInterval := 0
	var expectedVersion int64
	if existing != nil {
		currentInterval = existing.IntervalDays
		expectedVersion = existing.Version
	}

	now := s.Now()
	nextInterval, nextReviewAt := spaced_repetition.NextInterval(currentInterval, outcome, isFirstReview, now)

	_, err = s.repo.UpsertReview(ctx, &models.UpsertReview{
		UserID:           userID,
		ProblemID:        problem.ID,
		ExpectedVersion:  expectedVersion,
		Outcome:          outcome,
		PreviousInterval: currentInterval,
		LastReviewed:     now,
		IntervalDays:     nextInterval,
		NextReviewAt:     nextReviewAt,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, unavailable(err, "write review record")
	}

	return &models.SubmitResult{
		Slug:         problem.Slug,
		Outcome:      outcome,
		NextInterval: nextInterval,
		NextReviewAt: nextReviewAt,
		NextDate:     nextReviewAt.Format(models.DateLayout),
		FirstReview:  isFirstReview,
	}, nil
}
