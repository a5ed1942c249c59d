package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open connects to the database and makes sure the schema exists
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureDataDir(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres:
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if driver == DriverSQLite {
		// Enable foreign keys
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to enable foreign keys")
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ensureDataDir creates the directory holding a file-backed sqlite database
func ensureDataDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create data directory")
	}
	return nil
}

// dbTime normalizes a timestamp before it is written so that sqlite's text
// comparison agrees with time ordering
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func dbTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := dbTime(*t)
	return &v
}

type dialect struct {
	serial    string
	timestamp string
}

var dialects = map[string]dialect{
	DriverSQLite:   {serial: "INTEGER PRIMARY KEY AUTOINCREMENT", timestamp: "TIMESTAMP"},
	DriverPostgres: {serial: "BIGSERIAL PRIMARY KEY", timestamp: "TIMESTAMPTZ"},
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	d := dialects[db.DriverName()]
	ts := d.timestamp

	statements := []struct {
		name string
		sql  string
	}{
		{"users table", `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				leet_username TEXT NOT NULL UNIQUE,
				session_cookie TEXT NOT NULL DEFAULT '',
				csrf_token TEXT NOT NULL DEFAULT '',
				telegram_chat_id BIGINT UNIQUE,
				daily_goal INTEGER NOT NULL DEFAULT 5,
				max_new_per_day INTEGER NOT NULL DEFAULT 2,
				default_interval INTEGER NOT NULL DEFAULT 7,
				created_at ` + ts + ` NOT NULL,
				updated_at ` + ts + ` NOT NULL
			)`},
		{"problems table", `
			CREATE TABLE IF NOT EXISTS problems (
				id ` + d.serial + `,
				slug TEXT NOT NULL UNIQUE,
				title TEXT NOT NULL,
				difficulty TEXT NOT NULL DEFAULT 'Unknown',
				tags TEXT NOT NULL DEFAULT '[]',
				solved_at ` + ts + `,
				created_at ` + ts + ` NOT NULL,
				updated_at ` + ts + ` NOT NULL
			)`},
		{"review_records table", `
			CREATE TABLE IF NOT EXISTS review_records (
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				problem_id BIGINT NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
				last_reviewed ` + ts + `,
				interval_days INTEGER NOT NULL DEFAULT 0,
				next_review_at ` + ts + ` NOT NULL,
				version BIGINT NOT NULL DEFAULT 1,
				created_at ` + ts + ` NOT NULL,
				updated_at ` + ts + ` NOT NULL,
				PRIMARY KEY (user_id, problem_id)
			)`},
		{"review_records index", `
			CREATE INDEX IF NOT EXISTS idx_review_records_due
			ON review_records (user_id, next_review_at)`},
		{"review_logs table", `
			CREATE TABLE IF NOT EXISTS review_logs (
				id ` + d.serial + `,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				problem_id BIGINT NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
				outcome TEXT NOT NULL,
				previous_interval INTEGER NOT NULL,
				next_interval INTEGER NOT NULL,
				reviewed_at ` + ts + ` NOT NULL
			)`},
		{"review_logs index", `
			CREATE INDEX IF NOT EXISTS idx_review_logs_user
			ON review_logs (user_id, reviewed_at)`},
	}

	for _, st := range statements {
		if _, err := db.Exec(st.sql); err != nil {
			return errors.Wrapf(err, "failed to create %s", st.name)
		}
	}
	return nil
}
