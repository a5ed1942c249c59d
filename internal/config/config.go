// Package config loads runtime settings from .env, the environment and an
// optional config file.
package config

import (
	"encoding/hex"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/example/codecycle/internal/review"
)

// EnvPrefix prefixes every environment variable, e.g. CODECYCLE_DB_DRIVER
const EnvPrefix = "CODECYCLE"

// Config is the configuration to start the server, bot and CLI
type Config struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the HTTP server
	Addr string
	// Port is the binding port for the HTTP server
	Port int

	DBDriver string // sqlite3 or postgres
	DBDSN    string // Defaults to <DataDir>/codecycle.db for sqlite
	DataDir  string

	// Timezone names the calendar that decides what "today" is
	Timezone string
	Location *time.Location

	StorageTimeout time.Duration
	QueuePolicy    review.Policy

	EncryptionKey string // 64 hex chars, seals stored LeetCode credentials
	SessionSecret string
	SessionTTL    time.Duration

	TelegramToken string

	SchedulerEnabled bool
	ReminderHour     int
	SyncHour         int

	LeetCodeURL string
	LeetCodeRPS float64

	CORSOrigins []string
}

// IsDev reports whether the server runs in development mode
func (c *Config) IsDev() bool {
	return c.Mode != "prod"
}

// ListenAddr returns host:port for the HTTP listener
func (c *Config) ListenAddr() string {
	return c.Addr + ":" + strconv.Itoa(c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8080)
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "")
	v.SetDefault("data_dir", "data")
	v.SetDefault("timezone", "Local")
	v.SetDefault("storage_timeout", "5s")
	v.SetDefault("queue.policy", string(review.PolicyDueFirst))
	v.SetDefault("encryption_key", "")
	v.SetDefault("session_secret", "")
	v.SetDefault("session_ttl", "720h")
	v.SetDefault("telegram_token", "")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminder_hour", 9)
	v.SetDefault("scheduler.sync_hour", 3)
	v.SetDefault("leetcode.url", "https://leetcode.com")
	v.SetDefault("leetcode.rps", 2.0)
	v.SetDefault("cors.origins", []string{"chrome-extension://*", "http://localhost:5173"})
}

// Load reads .env (if present), then CODECYCLE_* variables and configFile (if set).
// The result is validated.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the bot token keeps its conventional name as a fallback
	if err := v.BindEnv("telegram_token", EnvPrefix+"_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, errors.Wrap(err, "failed to bind telegram token")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	cfg := &Config{
		Mode:             strings.ToLower(v.GetString("mode")),
		Addr:             v.GetString("addr"),
		Port:             v.GetInt("port"),
		DBDriver:         v.GetString("db.driver"),
		DBDSN:            v.GetString("db.dsn"),
		DataDir:          v.GetString("data_dir"),
		Timezone:         v.GetString("timezone"),
		StorageTimeout:   v.GetDuration("storage_timeout"),
		QueuePolicy:      review.Policy(v.GetString("queue.policy")),
		EncryptionKey:    v.GetString("encryption_key"),
		SessionSecret:    v.GetString("session_secret"),
		SessionTTL:       v.GetDuration("session_ttl"),
		TelegramToken:    v.GetString("telegram_token"),
		SchedulerEnabled: v.GetBool("scheduler.enabled"),
		ReminderHour:     v.GetInt("scheduler.reminder_hour"),
		SyncHour:         v.GetInt("scheduler.sync_hour"),
		LeetCodeURL:      strings.TrimRight(v.GetString("leetcode.url"), "/"),
		LeetCodeRPS:      v.GetFloat64("leetcode.rps"),
		CORSOrigins:      splitList(v.GetStringSlice("cors.origins")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every value and fills the derived ones
func (c *Config) Validate() error {
	switch c.Mode {
	case "prod", "dev":
	case "":
		c.Mode = "dev"
	default:
		return errors.Errorf("invalid mode %q: must be prod or dev", c.Mode)
	}

	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}

	switch c.DBDriver {
	case "sqlite", "sqlite3":
		c.DBDriver = "sqlite3"
		if c.DBDSN == "" {
			c.DBDSN = filepath.Join(c.DataDir, "codecycle.db")
		}
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("db.dsn is required for postgres")
		}
	default:
		return errors.Errorf("unsupported database driver %q", c.DBDriver)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return errors.Wrapf(err, "invalid timezone %q", c.Timezone)
	}
	c.Location = loc

	if c.StorageTimeout <= 0 {
		return errors.New("storage_timeout must be positive")
	}

	policy, err := review.ParsePolicy(string(c.QueuePolicy))
	if err != nil {
		return err
	}
	c.QueuePolicy = policy

	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return errors.New("encryption_key must be 64 hex characters")
		}
	}
	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.Mode == "prod" {
		if c.EncryptionKey == "" {
			return errors.New("encryption_key is required in prod mode")
		}
		if len(c.SessionSecret) < 32 {
			return errors.New("session_secret must be at least 32 characters in prod mode")
		}
	}

	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		return errors.Errorf("scheduler.reminder_hour must be between 0 and 23, got %d", c.ReminderHour)
	}
	if c.SyncHour < 0 || c.SyncHour > 23 {
		return errors.Errorf("scheduler.sync_hour must be between 0 and 23, got %d", c.SyncHour)
	}

	if c.LeetCodeURL == "" {
		return errors.New("leetcode.url is required")
	}
	if c.LeetCodeRPS <= 0 {
		return errors.New("leetcode.rps must be positive")
	}
	return nil
}

// splitList accepts both repeated entries and comma separated values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
