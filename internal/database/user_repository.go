package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/codecycle/pkg/models"
)

// ErrUserNotFound is returned when no user matches the lookup
var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, leet_username, session_cookie, csrf_token, telegram_chat_id,
	daily_goal, max_new_per_day, default_interval, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

func (r *UserRepository) getBy(ctx context.Context, column string, value interface{}) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + column + " = ?")
	err := r.db.GetContext(ctx, &user, query, value)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get user by %s", column)
	}
	return &user, nil
}

// GetByID returns a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUsername returns a user by LeetCode username, compared in lower case
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "leet_username", strings.ToLower(username))
}

// GetByTelegramChatID returns the user linked to a Telegram chat
func (r *UserRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error) {
	return r.getBy(ctx, "telegram_chat_id", chatID)
}

// UpsertByUsername creates the user with default settings or replaces the
// stored credentials of an existing one. Credentials must already be sealed.
func (r *UserRepository) UpsertByUsername(ctx context.Context, username, sessionCookie, csrfToken string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, errors.New("username is required")
	}
	now := dbTime(r.now())
	defaults := models.DefaultSettings()

	query := r.db.Rebind(`
		INSERT INTO users (
			id, leet_username, session_cookie, csrf_token,
			daily_goal, max_new_per_day, default_interval, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (leet_username) DO UPDATE SET
			session_cookie = EXCLUDED.session_cookie,
			csrf_token = EXCLUDED.csrf_token,
			updated_at = EXCLUDED.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(),
		username,
		sessionCookie,
		csrfToken,
		defaults.DailyGoal,
		defaults.MaxNewPerDay,
		defaults.DefaultInterval,
		now,
		now,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create/update user")
	}
	return r.GetByUsername(ctx, username)
}

// UpdateSettings applies the non-nil fields of update and returns the stored settings
func (r *UserRepository) UpdateSettings(ctx context.Context, userID string, update *models.UpdateSettings) (*models.Settings, error) {
	var sets []string
	var args []interface{}
	if update.DailyGoal != nil {
		sets = append(sets, "daily_goal = ?")
		args = append(args, *update.DailyGoal)
	}
	if update.MaxNewPerDay != nil {
		sets = append(sets, "max_new_per_day = ?")
		args = append(args, *update.MaxNewPerDay)
	}
	if update.DefaultInterval != nil {
		sets = append(sets, "default_interval = ?")
		args = append(args, *update.DefaultInterval)
	}
	if len(sets) == 0 {
		return nil, errors.New("no settings to update")
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, dbTime(r.now()), userID)

	query := r.db.Rebind("UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?")
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update settings")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return nil, ErrUserNotFound
	}

	var settings models.Settings
	query = r.db.Rebind("SELECT daily_goal, max_new_per_day, default_interval FROM users WHERE id = ?")
	if err := r.db.GetContext(ctx, &settings, query, userID); err != nil {
		return nil, errors.Wrap(err, "failed to read settings")
	}
	return &settings, nil
}

// LinkTelegram binds a Telegram chat to the user, unlinking it from anyone else
func (r *UserRepository) LinkTelegram(ctx context.Context, userID string, chatID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := dbTime(r.now())
	if _, err := tx.ExecContext(ctx,
		tx.Rebind("UPDATE users SET telegram_chat_id = NULL, updated_at = ? WHERE telegram_chat_id = ? AND id <> ?"),
		now, chatID, userID,
	); err != nil {
		return errors.Wrap(err, "failed to unlink chat")
	}

	result, err := tx.ExecContext(ctx,
		tx.Rebind("UPDATE users SET telegram_chat_id = ?, updated_at = ? WHERE id = ?"),
		chatID, now, userID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to link chat")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return errors.Wrap(tx.Commit(), "failed to commit chat link")
}

// ListWithCredentials returns users that have stored LeetCode credentials
func (r *UserRepository) ListWithCredentials(ctx context.Context) ([]*models.User, error) {
	return r.list(ctx, "session_cookie <> '' AND csrf_token <> ''")
}

// ListWithTelegram returns users with a linked Telegram chat
func (r *UserRepository) ListWithTelegram(ctx context.Context) ([]*models.User, error) {
	return r.list(ctx, "telegram_chat_id IS NOT NULL")
}

func (r *UserRepository) list(ctx context.Context, where string) ([]*models.User, error) {
	users := []*models.User{}
	query := "SELECT " + userColumns + " FROM users WHERE " + where + " ORDER BY created_at ASC, id ASC"
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	return users, nil
}
