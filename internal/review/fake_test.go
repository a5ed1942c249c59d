package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/example/codecycle/pkg/models"
)

var errStorageDown = errors.New("storage down")

type recordKey struct {
	userID    string
	problemID int64
}

// memStore is an in-memory Catalog, Repository, SettingsStore and StatsReader
type memStore struct {
	mu       sync.Mutex
	problems map[string]*models.Problem
	records  map[recordKey]*models.ReviewRecord
	logs     []*models.ReviewLog
	settings map[string]models.Settings
	nextID   int64

	failOn map[string]bool // method name -> return errStorageDown
	// beforeUpsert runs with the lock released, just before UpsertReview takes it
	beforeUpsert func()
}

func newMemStore() *memStore {
	return &memStore{
		problems: make(map[string]*models.Problem),
		records:  make(map[recordKey]*models.ReviewRecord),
		settings: make(map[string]models.Settings),
		failOn:   make(map[string]bool),
	}
}

func (m *memStore) fail(method string) error {
	if m.failOn[method] {
		return errStorageDown
	}
	return nil
}

func (m *memStore) addProblem(slug string, solvedAt *time.Time) *models.Problem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := &models.Problem{
		ID:         m.nextID,
		Slug:       slug,
		Title:      slug,
		Difficulty: models.DifficultyMedium,
		Tags:       models.Tags{"Array"},
		SolvedAt:   solvedAt,
	}
	m.problems[slug] = p
	return p
}

func (m *memStore) addRecord(userID, slug string, lastReviewed time.Time, interval int, next time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.problems[slug]
	last := lastReviewed
	m.records[recordKey{userID, p.ID}] = &models.ReviewRecord{
		UserID:       userID,
		ProblemID:    p.ID,
		LastReviewed: &last,
		IntervalDays: interval,
		NextReviewAt: next,
		Version:      1,
	}
}

func (m *memStore) record(userID, slug string) *models.ReviewRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.problems[slug]
	if p == nil {
		return nil
	}
	r := m.records[recordKey{userID, p.ID}]
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

func (m *memStore) problemByID(id int64) *models.Problem {
	for _, p := range m.problems {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *memStore) CountProblems(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CountProblems"); err != nil {
		return 0, err
	}
	return len(m.problems), nil
}

func (m *memStore) FindProblemBySlug(_ context.Context, slug string) (*models.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindProblemBySlug"); err != nil {
		return nil, err
	}
	p, ok := m.problems[slug]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) sortedProblems(keep func(*models.Problem) bool) []*models.Problem {
	var out []*models.Problem
	for _, p := range m.problems {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.SolvedAt == nil && b.SolvedAt != nil:
			return true
		case a.SolvedAt != nil && b.SolvedAt == nil:
			return false
		case a.SolvedAt != nil && b.SolvedAt != nil && !a.SolvedAt.Equal(*b.SolvedAt):
			return a.SolvedAt.Before(*b.SolvedAt)
		}
		return a.Slug < b.Slug
	})
	return out
}

func limitProblems(ps []*models.Problem, limit int) []*models.Problem {
	if limit >= 0 && len(ps) > limit {
		return ps[:limit]
	}
	return ps
}

func (m *memStore) ListProblemsExcluding(_ context.Context, exclude []string, limit int) ([]*models.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListProblemsExcluding"); err != nil {
		return nil, err
	}
	ex := toSet(exclude)
	return limitProblems(m.sortedProblems(func(p *models.Problem) bool {
		_, skip := ex[p.Slug]
		return !skip
	}), limit), nil
}

func (m *memStore) ListEligibleFresh(_ context.Context, exclude []string, cutoff time.Time, limit int) ([]*models.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListEligibleFresh"); err != nil {
		return nil, err
	}
	ex := toSet(exclude)
	return limitProblems(m.sortedProblems(func(p *models.Problem) bool {
		if _, skip := ex[p.Slug]; skip {
			return false
		}
		return p.SolvedAt == nil || !p.SolvedAt.After(cutoff)
	}), limit), nil
}

func (m *memStore) ListProblems(_ context.Context) ([]*models.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListProblems"); err != nil {
		return nil, err
	}
	return m.sortedProblems(func(*models.Problem) bool { return true }), nil
}

func (m *memStore) CountReviewedSince(_ context.Context, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CountReviewedSince"); err != nil {
		return 0, err
	}
	n := 0
	for k, r := range m.records {
		if k.userID == userID && r.LastReviewed != nil && !r.LastReviewed.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListReviewedSlugs(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListReviewedSlugs"); err != nil {
		return nil, err
	}
	var slugs []string
	for k := range m.records {
		if k.userID == userID {
			slugs = append(slugs, m.problemByID(k.problemID).Slug)
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

func (m *memStore) ListDue(_ context.Context, userID string, asOf, excludeReviewedSince time.Time) ([]*models.DueReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListDue"); err != nil {
		return nil, err
	}
	var due []*models.DueReview
	for k, r := range m.records {
		if k.userID != userID || r.NextReviewAt.After(asOf) {
			continue
		}
		if r.LastReviewed != nil && !r.LastReviewed.Before(excludeReviewedSince) {
			continue
		}
		due = append(due, &models.DueReview{Record: *r, Problem: *m.problemByID(k.problemID)})
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].Record.NextReviewAt.Equal(due[j].Record.NextReviewAt) {
			return due[i].Record.NextReviewAt.Before(due[j].Record.NextReviewAt)
		}
		return due[i].Problem.Slug < due[j].Problem.Slug
	})
	return due, nil
}

func (m *memStore) FindReview(_ context.Context, userID string, problemID int64) (*models.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindReview"); err != nil {
		return nil, err
	}
	r, ok := m.records[recordKey{userID, problemID}]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpsertReview(_ context.Context, u *models.UpsertReview) (*models.ReviewRecord, error) {
	if m.beforeUpsert != nil {
		m.beforeUpsert()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertReview"); err != nil {
		return nil, err
	}
	key := recordKey{u.UserID, u.ProblemID}
	current, ok := m.records[key]
	var version int64
	if ok {
		version = current.Version
	}
	if version != u.ExpectedVersion {
		return nil, ErrConflict
	}
	last := u.LastReviewed
	r := &models.ReviewRecord{
		UserID:       u.UserID,
		ProblemID:    u.ProblemID,
		LastReviewed: &last,
		IntervalDays: u.IntervalDays,
		NextReviewAt: u.NextReviewAt,
		Version:      version + 1,
	}
	m.records[key] = r
	m.logs = append(m.logs, &models.ReviewLog{
		UserID:           u.UserID,
		ProblemID:        u.ProblemID,
		Slug:             m.problemByID(u.ProblemID).Slug,
		Outcome:          u.Outcome,
		PreviousInterval: u.PreviousInterval,
		NextInterval:     u.IntervalDays,
		ReviewedAt:       u.LastReviewed,
	})
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateSettings(_ context.Context, userID string, u *models.UpdateSettings) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateSettings"); err != nil {
		return nil, err
	}
	s, ok := m.settings[userID]
	if !ok {
		s = models.DefaultSettings()
	}
	if u.DailyGoal != nil {
		s.DailyGoal = *u.DailyGoal
	}
	if u.MaxNewPerDay != nil {
		s.MaxNewPerDay = *u.MaxNewPerDay
	}
	if u.DefaultInterval != nil {
		s.DefaultInterval = *u.DefaultInterval
	}
	m.settings[userID] = s
	return &s, nil
}

func (m *memStore) CountTracked(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.records {
		if k.userID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountDue(ctx context.Context, userID string, asOf, excludeReviewedSince time.Time) (int, error) {
	due, err := m.ListDue(ctx, userID, asOf, excludeReviewedSince)
	return len(due), err
}

func (m *memStore) CountOutcomesSince(_ context.Context, userID string, since time.Time) (map[models.ReviewOutcome]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[models.ReviewOutcome]int)
	for _, l := range m.logs {
		if l.UserID == userID && !l.ReviewedAt.Before(since) {
			out[l.Outcome]++
		}
	}
	return out, nil
}

func toSet(ss []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		set[s] = struct{}{}
	}
	return set
}
