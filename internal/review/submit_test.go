package review

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/codecycle/pkg/models"
)

func TestSubmitReviewFirstReview(t *testing.T) {
	store := newMemStore()
	store.addProblem("two-sum", nil)
	svc := newTestService(store, PolicyDueFirst)

	res, err := svc.SubmitReview(context.Background(), newTestUser(5, 2, 7), "two-sum", models.OutcomeInstant)
	require.NoError(t, err)

	assert.True(t, res.FirstReview)
	assert.Equal(t, 4, res.NextInterval)
	assert.Equal(t, day(4), res.NextReviewAt)
	assert.Equal(t, "2024-06-19", res.NextDate)

	rec := store.record(testUserID, "two-sum")
	require.NotNil(t, rec)
	assert.Equal(t, 4, rec.IntervalDays)
	assert.Equal(t, day(4), rec.NextReviewAt)
	require.NotNil(t, rec.LastReviewed)
	assert.Equal(t, testNow, *rec.LastReviewed)
	assert.EqualValues(t, 1, rec.Version)

	require.Len(t, store.logs, 1)
	assert.Equal(t, models.OutcomeInstant, store.logs[0].Outcome)
	assert.Equal(t, 0, store.logs[0].PreviousInterval)
}

func TestSubmitReviewInstantDoublesInterval(t *testing.T) {
	store := newMemStore()
	store.addProblem("lru-cache", nil)
	store.addRecord(testUserID, "lru-cache", day(-5), 5, day(0))
	svc := newTestService(store, PolicyDueFirst)

	res, err := svc.SubmitReview(context.Background(), newTestUser(5, 2, 7), "lru-cache", models.OutcomeInstant)
	require.NoError(t, err)

	assert.False(t, res.FirstReview)
	assert.Equal(t, 10, res.NextInterval)
	assert.Equal(t, day(10), res.NextReviewAt)
	assert.EqualValues(t, 2, store.record(testUserID, "lru-cache").Version)
}

func TestSubmitReviewFailedResets(t *testing.T) {
	store := newMemStore()
	store.addProblem("word-ladder", nil)
	store.addRecord(testUserID, "word-ladder", day(-20), 20, day(0))
	svc := newTestService(store, PolicyDueFirst)

	res, err := svc.SubmitReview(context.Background(), newTestUser(5, 2, 7), "word-ladder", models.OutcomeFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NextInterval)
	assert.Equal(t, day(1), res.NextReviewAt)
}

func TestSubmitReviewErrors(t *testing.T) {
	store := newMemStore()
	store.addProblem("two-sum", nil)
	svc := newTestService(store, PolicyDueFirst)
	user := newTestUser(5, 2, 7)

	_, err := svc.SubmitReview(context.Background(), user, "two-sum", models.ReviewOutcome("PERFECT"))
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = svc.SubmitReview(context.Background(), user, "no-such-problem", models.OutcomeSolved)
	assert.ErrorIs(t, err, ErrProblemNotFound)

	_, err = svc.SubmitReview(context.Background(), nil, "two-sum", models.OutcomeSolved)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	store.failOn["FindReview"] = true
	_, err = svc.SubmitReview(context.Background(), user, "two-sum", models.OutcomeSolved)
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.Nil(t, store.record(testUserID, "two-sum"))
}

func TestSubmitReviewConcurrentSameProblem(t *testing.T) {
	store := newMemStore()
	store.addProblem("median-of-two", nil)
	store.beforeUpsert = runtime.Gosched
	svc := newTestService(store, PolicyDueFirst)
	user := newTestUser(5, 2, 7)

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitReview(context.Background(), user, "median-of-two", models.OutcomeInstant)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// every write saw the interval left by the previous one: 4, 8, 16, 32, 64
	rec := store.record(testUserID, "median-of-two")
	assert.Equal(t, 64, rec.IntervalDays)
	assert.EqualValues(t, n, rec.Version)
	assert.Len(t, store.logs, n)
}

type conflictingStore struct {
	*memStore
	upserts int
}

func (c *conflictingStore) UpsertReview(context.Context, *models.UpsertReview) (*models.ReviewRecord, error) {
	c.upserts++
	return nil, ErrConflict
}

func TestSubmitReviewGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := newMemStore()
	store.addProblem("two-sum", nil)
	repo := &conflictingStore{memStore: store}
	svc := NewService(store, repo, store, store, Options{Location: time.UTC})

	_, err := svc.SubmitReview(context.Background(), newTestUser(5, 2, 7), "two-sum", models.OutcomeSolved)
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.Equal(t, maxSubmitAttempts, repo.upserts)
}

func TestSubmittedProblemLeavesTodayQueue(t *testing.T) {
	store := newMemStore()
	store.addProblem("due-a", nil)
	store.addRecord(testUserID, "due-a", day(-2), 2, day(0))
	store.addProblem("due-b", nil)
	store.addRecord(testUserID, "due-b", day(-2), 2, day(0))
	svc := newTestService(store, PolicyDueFirst)
	user := newTestUser(2, 1, 7)

	q, err := svc.BuildTodayQueue(context.Background(), user, testNow)
	require.NoError(t, err)
	require.Equal(t, []string{"due-a", "due-b"}, slugs(q.Items))

	_, err = svc.SubmitReview(context.Background(), user, "due-a", models.OutcomeSolved)
	require.NoError(t, err)

	q, err = svc.BuildTodayQueue(context.Background(), user, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"due-b"}, slugs(q.Items))
	assert.Equal(t, 1, q.CompletedToday)
	assert.Equal(t, 2, q.Total)

	// tomorrow it is still not due: solved on a 2-day interval gives 3 days
	q, err = svc.BuildTodayQueue(context.Background(), user, testNow.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotContains(t, slugs(q.Items), "due-a")
}
