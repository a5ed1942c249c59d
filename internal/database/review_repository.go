package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/codecycle/internal/review"
	"github.com/example/codecycle/pkg/models"
)

const recordColumns = `r.user_id, r.problem_id, r.last_reviewed, r.interval_days, r.next_review_at, r.version, r.created_at, r.updated_at`

// ReviewRepository handles database operations for review records and logs
type ReviewRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewReviewRepository creates a new repository instance
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db, now: time.Now}
}

// CountReviewedSince counts the user's problems last reviewed at or after since
func (r *ReviewRepository) CountReviewedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM review_records
		WHERE user_id = ? AND last_reviewed IS NOT NULL AND last_reviewed >= ?
	`)
	var n int
	if err := r.db.GetContext(ctx, &n, query, userID, dbTime(since)); err != nil {
		return 0, errors.Wrap(err, "failed to count reviewed problems")
	}
	return n, nil
}

// ListReviewedSlugs returns the slug of every problem the user has a record for
func (r *ReviewRepository) ListReviewedSlugs(ctx context.Context, userID string) ([]string, error) {
	query := r.db.Rebind(`
		SELECT p.slug FROM review_records r
		JOIN problems p ON p.id = r.problem_id
		WHERE r.user_id = ?
		ORDER BY p.slug ASC
	`)
	slugs := []string{}
	if err := r.db.SelectContext(ctx, &slugs, query, userID); err != nil {
		return nil, errors.Wrap(err, "failed to list reviewed problems")
	}
	return slugs, nil
}

type dueRow struct {
	models.ReviewRecord
	Slug       string            `db:"slug"`
	Title      string            `db:"title"`
	Difficulty models.Difficulty `db:"difficulty"`
	Tags       models.Tags       `db:"tags"`
	SolvedAt   *time.Time        `db:"solved_at"`
}

// ListDue returns records due on or before asOf that were not reviewed at or after excludeReviewedSince
func (r *ReviewRepository) ListDue(ctx context.Context, userID string, asOf, excludeReviewedSince time.Time) ([]*models.DueReview, error) {
	query := r.db.Rebind(`
		SELECT ` + recordColumns + `, p.slug, p.title, p.difficulty, p.tags, p.solved_at
		FROM review_records r
		JOIN problems p ON p.id = r.problem_id
		WHERE r.user_id = ?
		AND r.next_review_at <= ?
		AND (r.last_reviewed IS NULL OR r.last_reviewed < ?)
		ORDER BY r.next_review_at ASC, p.slug ASC
	`)
	var rows []dueRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, dbTime(asOf), dbTime(excludeReviewedSince)); err != nil {
		return nil, errors.Wrap(err, "failed to list due reviews")
	}

	due := make([]*models.DueReview, 0, len(rows))
	for _, row := range rows {
		due = append(due, &models.DueReview{
			Record: row.ReviewRecord,
			Problem: models.Problem{
				ID:         row.ProblemID,
				Slug:       row.Slug,
				Title:      row.Title,
				Difficulty: row.Difficulty,
				Tags:       row.Tags,
				SolvedAt:   row.SolvedAt,
			},
		})
	}
	return due, nil
}

// FindReview returns the user's record for a problem or nil if there is none
func (r *ReviewRepository) FindReview(ctx context.Context, userID string, problemID int64) (*models.ReviewRecord, error) {
	query := r.db.Rebind(`SELECT ` + recordColumns + ` FROM review_records r WHERE r.user_id = ? AND r.problem_id = ?`)
	var rec models.ReviewRecord
	err := r.db.GetContext(ctx, &rec, query, userID, problemID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get review record")
	}
	return &rec, nil
}

// UpsertReview writes a review record and its log entry in one transaction.
// The write only applies if the stored version still equals ExpectedVersion,
// otherwise review.ErrConflict is returned and nothing changes.
func (r *ReviewRepository) UpsertReview(ctx context.Context, u *models.UpsertReview) (*models.ReviewRecord, error) {
	now := dbTime(r.now())
	lastReviewed := dbTime(u.LastReviewed)
	nextReviewAt := dbTime(u.NextReviewAt)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var result sql.Result
	if u.ExpectedVersion == 0 {
		result, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO review_records (
				user_id, problem_id, last_reviewed, interval_days,
				next_review_at, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT (user_id, problem_id) DO NOTHING
		`), u.UserID, u.ProblemID, lastReviewed, u.IntervalDays, nextReviewAt, now, now)
	} else {
		result, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE review_records SET
				last_reviewed = ?,
				interval_days = ?,
				next_review_at = ?,
				version = version + 1,
				updated_at = ?
			WHERE user_id = ? AND problem_id = ? AND version = ?
		`), lastReviewed, u.IntervalDays, nextReviewAt, now, u.UserID, u.ProblemID, u.ExpectedVersion)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to write review record")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return nil, review.ErrConflict
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO review_logs (
			user_id, problem_id, outcome, previous_interval, next_interval, reviewed_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`), u.UserID, u.ProblemID, u.Outcome, u.PreviousInterval, u.IntervalDays, lastReviewed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to write review log")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit review")
	}

	return &models.ReviewRecord{
		UserID:       u.UserID,
		ProblemID:    u.ProblemID,
		LastReviewed: &lastReviewed,
		IntervalDays: u.IntervalDays,
		NextReviewAt: nextReviewAt,
		Version:      u.ExpectedVersion + 1,
		UpdatedAt:    now,
	}, nil
}

// ListReviewLogs returns the user's review history, newest first
func (r *ReviewRepository) ListReviewLogs(ctx context.Context, userID string) ([]*models.ReviewLog, error) {
	query := r.db.Rebind(`
		SELECT l.id, l.user_id, l.problem_id, p.slug, p.title, l.outcome,
		       l.previous_interval, l.next_interval, l.reviewed_at
		FROM review_logs l
		JOIN problems p ON p.id = l.problem_id
		WHERE l.user_id = ?
		ORDER BY l.reviewed_at DESC, l.id DESC
	`)
	logs := []*models.ReviewLog{}
	if err := r.db.SelectContext(ctx, &logs, query, userID); err != nil {
		return nil, errors.Wrap(err, "failed to list review history")
	}
	return logs, nil
}
