package review

import (
	"context"
	"time"

	"github.com/example/codecycle/internal/spaced_repetition"
	"github.com/example/codecycle/pkg/models"
)

// New-user leniency: below either threshold every never-reviewed problem is eligible
const (
	newUserMinReviewed    = 10
	newUserCatalogPercent = 10
)

// BuildTodayQueue computes the problems the user should work through today.
// Either the whole queue is returned or an error; never a partial queue.
func (s *Service) BuildTodayQueue(ctx context.Context, user *models.User, now time.Time) (*models.TodayQueue, error) {
	if user == nil || user.ID == "" {
		return nil, ErrNotAuthenticated
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	today := spaced_repetition.StartOfDay(now.In(s.opts.Location))

	completedToday, err := s.repo.CountReviewedSince(ctx, user.ID, today)
	if err != nil {
		return nil, unavailable(err, "count reviews completed today")
	}

	var items []*models.ReviewItem
	switch s.opts.Policy {
	case PolicyReserveNew:
		items, err = s.reserveNewItems(ctx, user, today, completedToday)
	default:
		items, err = s.dueFirstItems(ctx, user, today, completedToday)
	}
	if err != nil {
		return nil, err
	}

	total := completedToday + len(items)
	if total < user.DailyGoal {
		total = user.DailyGoal
	}

	return &models.TodayQueue{
		Date:           today.Format(models.DateLayout),
		DailyGoal:      user.DailyGoal,
		CompletedToday: completedToday,
		Items:          items,
		Total:          total,
		GoalMet:        completedToday >= user.DailyGoal,
	}, nil
}

// dueFirstItems returns every due review followed by new items in the slots left over
func (s *Service) dueFirstItems(ctx context.Context, user *models.User, today time.Time, completedToday int) ([]*models.ReviewItem, error) {
	due, err := s.repo.ListDue(ctx, user.ID, today, today)
	if err != nil {
		return nil, unavailable(err, "list due reviews")
	}

	items := make([]*models.ReviewItem, 0, len(due))
	for _, d := range due {
		items = append(items, dueItem(d))
	}

	remainingSlots := user.DailyGoal - completedToday - len(items)
	if remainingSlots < 0 {
		remainingSlots = 0
	}
	maxNew := remainingSlots
	if user.MaxNewPerDay < maxNew {
		maxNew = user.MaxNewPerDay
	}
	if maxNew <= 0 {
		return items, nil
	}

	fresh, err := s.newItems(ctx, user, today, maxNew, true)
	if err != nil {
		return nil, err
	}
	return append(items, fresh...), nil
}

// reserveNewItems returns new items in reserved slots followed by due reviews up to the goal.
// Nothing is returned once the goal is met.
func (s *Service) reserveNewItems(ctx context.Context, user *models.User, today time.Time, completedToday int) ([]*models.ReviewItem, error) {
	if completedToday >= user.DailyGoal {
		return []*models.ReviewItem{}, nil
	}

	maxNew := user.DailyGoal / 2
	if user.MaxNewPerDay < maxNew {
		maxNew = user.MaxNewPerDay
	}

	items := []*models.ReviewItem{}
	if maxNew > 0 {
		fresh, err := s.newItems(ctx, user, today, maxNew, false)
		if err != nil {
			return nil, err
		}
		items = fresh
	}

	remainingSlots := user.DailyGoal - completedToday - len(items)
	if remainingSlots <= 0 {
		return items, nil
	}

	due, err := s.repo.ListDue(ctx, user.ID, today, today)
	if err != nil {
		return nil, unavailable(err, "list due reviews")
	}
	if len(due) > remainingSlots {
		due = due[:remainingSlots]
	}
	for _, d := range due {
		items = append(items, dueItem(d))
	}
	return items, nil
}

// newItems selects up to limit never-reviewed problems.
// With freshness set, established users only get problems solved at least
// defaultInterval days ago (or with no solve date).
func (s *Service) newItems(ctx context.Context, user *models.User, today time.Time, limit int, freshness bool) ([]*models.ReviewItem, error) {
	reviewed, err := s.repo.ListReviewedSlugs(ctx, user.ID)
	if err != nil {
		return nil, unavailable(err, "list reviewed problems")
	}

	var problems []*models.Problem
	if freshness {
		catalogSize, err := s.catalog.CountProblems(ctx)
		if err != nil {
			return nil, unavailable(err, "count catalog problems")
		}
		freshness = !isNewUser(len(reviewed), catalogSize)
	}

	if freshness {
		cutoff := today.AddDate(0, 0, -user.DefaultInterval)
		problems, err = s.catalog.ListEligibleFresh(ctx, reviewed, cutoff, limit)
	} else {
		problems, err = s.catalog.ListProblemsExcluding(ctx, reviewed, limit)
	}
	if err != nil {
		return nil, unavailable(err, "list new problems")
	}

	seen := make(map[string]struct{}, len(reviewed))
	for _, slug := range reviewed {
		seen[slug] = struct{}{}
	}

	items := make([]*models.ReviewItem, 0, len(problems))
	for _, p := range problems {
		if _, ok := seen[p.Slug]; ok {
			continue
		}
		seen[p.Slug] = struct{}{}
		items = append(items, &models.ReviewItem{
			ProblemID:  p.ID,
			Slug:       p.Slug,
			Title:      p.Title,
			Difficulty: p.Difficulty,
			Tags:       p.Tags,
			IsNew:      true,
		})
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

// isNewUser reports whether the user has reviewed fewer than 10 problems
// or fewer than 10% of the catalog
func isNewUser(reviewedCount, catalogSize int) bool {
	return reviewedCount < newUserMinReviewed || reviewedCount*100 < catalogSize*newUserCatalogPercent
}

func dueItem(d *models.DueReview) *models.ReviewItem {
	next := d.Record.NextReviewAt
	return &models.ReviewItem{
		ProblemID:    d.Problem.ID,
		Slug:         d.Problem.Slug,
		Title:        d.Problem.Title,
		Difficulty:   d.Problem.Difficulty,
		Tags:         d.Problem.Tags,
		IsNew:        false,
		LastReviewed: d.Record.LastReviewed,
		IntervalDays: d.Record.IntervalDays,
		NextReviewAt: &next,
	}
}
