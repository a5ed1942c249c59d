package review

import (
	"context"
	"sort"
	"time"

	"github.com/example/codecycle/internal/spaced_repetition"
	"github.com/example/codecycle/pkg/models"
)

// Stats summarizes the user's review activity as of now
func (s *Service) Stats(ctx context.Context, user *models.User, now time.Time) (*models.ReviewStats, error) {
	if user == nil || user.ID == "" {
		return nil, ErrNotAuthenticated
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	today := spaced_repetition.StartOfDay(now.In(s.opts.Location))
	stats := &models.ReviewStats{}

	var err error
	if stats.Tracked, err = s.stats.CountTracked(ctx, user.ID); err != nil {
		return nil, unavailable(err, "count tracked problems")
	}
	if stats.DueToday, err = s.stats.CountDue(ctx, user.ID, today, today); err != nil {
		return nil, unavailable(err, "count due reviews")
	}
	if stats.ReviewedToday, err = s.repo.CountReviewedSince(ctx, user.ID, today); err != nil {
		return nil, unavailable(err, "count reviews completed today")
	}
	if stats.CatalogSize, err = s.catalog.CountProblems(ctx); err != nil {
		return nil, unavailable(err, "count catalog problems")
	}
	if stats.Outcomes, err = s.stats.CountOutcomesSince(ctx, user.ID, today.AddDate(0, 0, -6)); err != nil {
		return nil, unavailable(err, "count recent outcomes")
	}
	for _, n := range stats.Outcomes {
		stats.ReviewsLast7Days += n
	}
	return stats, nil
}

// BrowseTopics groups the catalog by primary topic, topics sorted by name
func (s *Service) BrowseTopics(ctx context.Context) ([]*models.TopicGroup, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	problems, err := s.catalog.ListProblems(ctx)
	if err != nil {
		return nil, unavailable(err, "list problems")
	}

	byTopic := make(map[string]*models.TopicGroup)
	for _, p := range problems {
		topic := p.PrimaryTopic()
		g, ok := byTopic[topic]
		if !ok {
			g = &models.TopicGroup{Topic: topic}
			byTopic[topic] = g
		}
		g.Problems = append(g.Problems, p)
	}

	groups := make([]*models.TopicGroup, 0, len(byTopic))
	for _, g := range byTopic {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Topic < groups[j].Topic
	})
	return groups, nil
}
