package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/codecycle/internal/auth"
	"github.com/example/codecycle/internal/catalog"
	"github.com/example/codecycle/internal/config"
	"github.com/example/codecycle/internal/database"
	"github.com/example/codecycle/internal/leetcode"
	"github.com/example/codecycle/internal/logger"
	"github.com/example/codecycle/internal/review"
	"github.com/example/codecycle/pkg/models"
)

// app holds the wired services shared by every command
type app struct {
	cfg *config.Config
	log *logger.Logger
	db  *sqlx.DB

	problems *database.ProblemRepository
	reviews  *database.ReviewRepository
	users    *database.UserRepository
	stats    *database.StatisticsRepository

	engine   *review.Service
	leetcode *leetcode.Client
	auth     *auth.Service
	syncer   *catalog.Syncer
}

func newApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Mode)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		problems: database.NewProblemRepository(db),
		reviews:  database.NewReviewRepository(db),
		users:    database.NewUserRepository(db),
		stats:    database.NewStatisticsRepository(db),
	}

	a.engine = review.NewService(a.problems, a.reviews, a.users, a.stats, review.Options{
		Timeout:  cfg.StorageTimeout,
		Location: cfg.Location,
		Policy:   cfg.QueuePolicy,
	})
	a.leetcode = leetcode.NewClient(leetcode.Options{
		BaseURL: cfg.LeetCodeURL,
		RPS:     cfg.LeetCodeRPS,
		Logger:  log,
	})

	sealer, sessions, err := a.credentials()
	if err != nil {
		db.Close()
		return nil, err
	}
	a.auth = auth.NewService(a.users, a.leetcode, sealer, sessions, log)
	a.syncer = catalog.NewSyncer(a.leetcode, a.problems, a.auth, a.users, log)

	log.Debug("application initialized", "driver", cfg.DBDriver, "timezone", cfg.Location.String(), "policy", cfg.QueuePolicy)
	return a, nil
}

// credentials builds the sealer and session issuer. Development mode makes up
// a throwaway key or secret when none is configured.
func (a *app) credentials() (*auth.Sealer, *auth.Sessions, error) {
	key := a.cfg.EncryptionKey
	if key == "" && a.cfg.IsDev() {
		var err error
		if key, err = randomHex(32); err != nil {
			return nil, nil, err
		}
		a.log.Warn("encryption_key is not set, using a random key; stored LeetCode credentials will not survive a restart")
	}
	var sealer *auth.Sealer
	if key != "" {
		var err error
		if sealer, err = auth.NewSealer(key); err != nil {
			return nil, nil, err
		}
	}

	secret := a.cfg.SessionSecret
	if secret == "" {
		var err error
		if secret, err = randomHex(32); err != nil {
			return nil, nil, err
		}
		a.log.Warn("session_secret is not set, using a random secret; sessions end on restart")
	}
	return sealer, auth.NewSessions(secret, a.cfg.SessionTTL), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to generate random key")
	}
	return hex.EncodeToString(buf), nil
}

// userByName loads a user for the CLI commands
func (a *app) userByName(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, errors.New("--user is required")
	}
	user, err := a.users.GetByUsername(ctx, username)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, errors.Errorf("no user %q: log in through the web app first", username)
	}
	return user, err
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("failed to close database", "error", err)
	}
	a.log.Sync()
}
