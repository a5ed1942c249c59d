package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/codecycle/pkg/models"
)

const problemColumns = `id, slug, title, difficulty, tags, solved_at, created_at, updated_at`

// Never-reviewed candidates: unknown solve dates first, then oldest solves
const newProblemOrder = ` ORDER BY (solved_at IS NOT NULL), solved_at ASC, slug ASC`

// ProblemRepository handles database operations for the problem catalog
type ProblemRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewProblemRepository creates a new repository instance
func NewProblemRepository(db *sqlx.DB) *ProblemRepository {
	return &ProblemRepository{db: db, now: time.Now}
}

// CountProblems returns the catalog size
func (r *ProblemRepository) CountProblems(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM problems"); err != nil {
		return 0, errors.Wrap(err, "failed to count problems")
	}
	return n, nil
}

// FindProblemBySlug returns the problem or nil when the slug is unknown
func (r *ProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*models.Problem, error) {
	var p models.Problem
	query := r.db.Rebind("SELECT " + problemColumns + " FROM problems WHERE slug = ?")
	err := r.db.GetContext(ctx, &p, query, slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get problem by slug")
	}
	return &p, nil
}

// ListProblems returns the whole catalog ordered by slug
func (r *ProblemRepository) ListProblems(ctx context.Context) ([]*models.Problem, error) {
	var problems []*models.Problem
	err := r.db.SelectContext(ctx, &problems, "SELECT "+problemColumns+" FROM problems ORDER BY slug ASC")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list problems")
	}
	return problems, nil
}

// ListProblemsExcluding returns up to limit problems whose slug is not in exclude
func (r *ProblemRepository) ListProblemsExcluding(ctx context.Context, exclude []string, limit int) ([]*models.Problem, error) {
	return r.listNew(ctx, exclude, nil, limit)
}

// ListEligibleFresh is ListProblemsExcluding restricted to problems solved
// on or before cutoff or with no known solve date
func (r *ProblemRepository) ListEligibleFresh(ctx context.Context, exclude []string, cutoff time.Time, limit int) ([]*models.Problem, error) {
	return r.listNew(ctx, exclude, &cutoff, limit)
}

func (r *ProblemRepository) listNew(ctx context.Context, exclude []string, cutoff *time.Time, limit int) ([]*models.Problem, error) {
	if limit <= 0 {
		return []*models.Problem{}, nil
	}

	query := "SELECT " + problemColumns + " FROM problems WHERE 1 = 1"
	var args []interface{}
	if len(exclude) > 0 {
		query += " AND slug NOT IN (?)"
		args = append(args, exclude)
	}
	if cutoff != nil {
		query += " AND (solved_at IS NULL OR solved_at <= ?)"
		args = append(args, dbTime(*cutoff))
	}
	query += newProblemOrder + " LIMIT ?"
	args = append(args, limit)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build new problem query")
	}

	var problems []*models.Problem
	if err := r.db.SelectContext(ctx, &problems, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to list new problems")
	}
	return problems, nil
}

// UpsertProblem creates the problem or refreshes its metadata by slug.
// A known solve date is never cleared by an update without one.
func (r *ProblemRepository) UpsertProblem(ctx context.Context, p *models.Problem) (created bool, err error) {
	if p.Slug == "" {
		return false, errors.New("problem slug is required")
	}
	if p.Difficulty == "" {
		p.Difficulty = models.DifficultyUnknown
	}
	now := dbTime(r.now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var id int64
	err = tx.GetContext(ctx, &id, tx.Rebind("SELECT id FROM problems WHERE slug = ?"), p.Slug)
	switch {
	case err == sql.ErrNoRows:
		query := tx.Rebind(`
			INSERT INTO problems (slug, title, difficulty, tags, solved_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`)
		if err := tx.GetContext(ctx, &id, query,
			p.Slug, p.Title, p.Difficulty, p.Tags, dbTimePtr(p.SolvedAt), now, now,
		); err != nil {
			return false, errors.Wrap(err, "failed to create problem")
		}
		created = true
		p.CreatedAt = now
	case err != nil:
		return false, errors.Wrap(err, "failed to look up problem")
	default:
		query := tx.Rebind(`
			UPDATE problems SET
				title = ?,
				difficulty = ?,
				tags = ?,
				solved_at = COALESCE(?, solved_at),
				updated_at = ?
			WHERE id = ?
		`)
		if _, err := tx.ExecContext(ctx, query,
			p.Title, p.Difficulty, p.Tags, dbTimePtr(p.SolvedAt), now, id,
		); err != nil {
			return false, errors.Wrap(err, "failed to update problem")
		}
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit problem")
	}
	p.ID = id
	p.UpdatedAt = now
	return created, nil
}
