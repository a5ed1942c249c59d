// Package catalog keeps the problem catalog in step with the users' LeetCode history.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/example/codecycle/internal/leetcode"
	"github.com/example/codecycle/internal/logger"
	"github.com/example/codecycle/pkg/models"
)

// Fetcher lists a user's solved problems
type Fetcher interface {
	FetchSolvedProblems(ctx context.Context, username string, creds leetcode.Credentials) (*leetcode.SolvedResult, error)
}

// Store upserts catalog entries by slug
type Store interface {
	UpsertProblem(ctx context.Context, p *models.Problem) (created bool, err error)
}

// Unsealer recovers a user's LeetCode cookies
type Unsealer interface {
	Credentials(user *models.User) (leetcode.Credentials, error)
}

// UserLister finds the users a full sync covers
type UserLister interface {
	ListWithCredentials(ctx context.Context) ([]*models.User, error)
}

// Result summarizes one user's sync
type Result struct {
	Username string            `json:"username"`
	Strategy leetcode.Strategy `json:"strategy"`
	Fetched  int               `json:"fetched"`
	Created  int               `json:"created"`
	Updated  int               `json:"updated"`
	Problems []*models.Problem `json:"problems"`
}

// DefaultSyncTimeout bounds one sync, including the per-problem fallback fetch
const DefaultSyncTimeout = 5 * time.Minute

// Syncer imports solved problems into the catalog
type Syncer struct {
	fetcher  Fetcher
	store    Store
	unsealer Unsealer
	users    UserLister
	log      *logger.Logger
	group    singleflight.Group
	timeout  time.Duration // Bounds a shared run, which outlives any one caller
}

// NewSyncer creates a catalog syncer
func NewSyncer(fetcher Fetcher, store Store, unsealer Unsealer, users UserLister, log *logger.Logger) *Syncer {
	if log == nil {
		log = logger.Nop()
	}
	return &Syncer{
		fetcher:  fetcher,
		store:    store,
		unsealer: unsealer,
		users:    users,
		log:      log.Component("catalog"),
		timeout:  DefaultSyncTimeout,
	}
}

// Sync fetches the user's solved problems and upserts them into the catalog.
// Concurrent syncs for the same user share one run. The run is detached
// from the caller's cancellation: a caller that gives up returns ctx.Err()
// while the others still get the result.
func (s *Syncer) Sync(ctx context.Context, user *models.User) (*Result, error) {
	if user == nil {
		return nil, errors.New("sync requires a user")
	}
	ch := s.group.DoChan(user.ID, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.sync(runCtx, user)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			s.log.Debug("shared sync result", "user", user.LeetUsername)
		}
		return r.Val.(*Result), nil
	}
}

func (s *Syncer) sync(ctx context.Context, user *models.User) (*Result, error) {
	creds, err := s.unsealer.Credentials(user)
	if err != nil {
		return nil, err
	}

	solved, err := s.fetcher.FetchSolvedProblems(ctx, user.LeetUsername, creds)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch solved problems")
	}

	res := &Result{
		Username: user.LeetUsername,
		Strategy: solved.Strategy,
		Fetched:  len(solved.Problems),
		Problems: make([]*models.Problem, 0, len(solved.Problems)),
	}
	for _, sp := range solved.Problems {
		p := toProblem(sp)
		created, err := s.store.UpsertProblem(ctx, p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to store problem %s", sp.Slug)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		res.Problems = append(res.Problems, p)
	}

	s.log.Info("catalog synced",
		"user", user.LeetUsername,
		"strategy", solved.Strategy,
		"fetched", res.Fetched,
		"created", res.Created,
		"updated", res.Updated,
	)
	return res, nil
}

// SyncAll syncs every user with stored credentials. A failing user is
// logged and skipped; the number of failures is returned with the results.
func (s *Syncer) SyncAll(ctx context.Context) ([]*Result, int, error) {
	users, err := s.users.ListWithCredentials(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list users")
	}

	var results []*Result
	failed := 0
	for _, u := range users {
		if ctx.Err() != nil {
			return results, failed, ctx.Err()
		}
		res, err := s.Sync(ctx, u)
		if err != nil {
			failed++
			s.log.Error("catalog sync failed", "user", u.LeetUsername, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results, failed, nil
}

func toProblem(sp leetcode.SolvedProblem) *models.Problem {
	tags := make(models.Tags, 0, len(sp.Tags))
	for _, t := range sp.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return &models.Problem{
		Slug:       sp.Slug,
		Title:      sp.Title,
		Difficulty: models.ParseDifficulty(sp.Difficulty),
		Tags:       tags,
		SolvedAt:   sp.LastSolvedAt,
	}
}
