package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/codecycle/pkg/models"
)

// StatisticsRepository handles aggregate queries over review activity
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// CountTracked returns how many problems the user has a review record for
func (r *StatisticsRepository) CountTracked(ctx context.Context, userID string) (int, error) {
	var n int
	query := r.db.Rebind("SELECT COUNT(*) FROM review_records WHERE user_id = ?")
	if err := r.db.GetContext(ctx, &n, query, userID); err != nil {
		return 0, errors.Wrap(err, "failed to count tracked problems")
	}
	return n, nil
}

// CountDue counts records that ListDue would return
func (r *StatisticsRepository) CountDue(ctx context.Context, userID string, asOf, excludeReviewedSince time.Time) (int, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM review_records
		WHERE user_id = ?
		AND next_review_at <= ?
		AND (last_reviewed IS NULL OR last_reviewed < ?)
	`)
	var n int
	if err := r.db.GetContext(ctx, &n, query, userID, dbTime(asOf), dbTime(excludeReviewedSince)); err != nil {
		return 0, errors.Wrap(err, "failed to count due reviews")
	}
	return n, nil
}

// CountOutcomesSince returns a histogram of the user's outcomes logged at or after since
func (r *StatisticsRepository) CountOutcomesSince(ctx context.Context, userID string, since time.Time) (map[models.ReviewOutcome]int, error) {
	query := r.db.Rebind(`
		SELECT outcome, COUNT(*) AS total
		FROM review_logs
		WHERE user_id = ? AND reviewed_at >= ?
		GROUP BY outcome
	`)
	var rows []struct {
		Outcome models.ReviewOutcome `db:"outcome"`
		Total   int                  `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, userID, dbTime(since)); err != nil {
		return nil, errors.Wrap(err, "failed to count outcomes")
	}

	counts := make(map[models.ReviewOutcome]int, len(rows))
	for _, row := range rows {
		counts[row.Outcome] = row.Total
	}
	return counts, nil
}
