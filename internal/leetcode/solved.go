package leetcode

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Strategy names how the solved list was obtained
type Strategy string

const (
	// StrategyQuestionList pages the problem set filtered to accepted problems
	StrategyQuestionList Strategy = "questionList"
	// StrategyRecentSubmissions rebuilds the list from recent accepted submissions
	StrategyRecentSubmissions Strategy = "recentSubmissions"
)

const (
	questionPageSize  = 100
	recentLimit       = 5000
	detailConcurrency = 4
	unknownDifficulty = "Unknown"
)

// SolvedProblem is one accepted problem of the user
type SolvedProblem struct {
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Difficulty   string     `json:"difficulty"`
	Tags         []string   `json:"tags"`
	LastSolvedAt *time.Time `json:"lastSolvedAt,omitempty"`
}

// SolvedResult is the outcome of FetchSolvedProblems
type SolvedResult struct {
	Problems []SolvedProblem `json:"problems"`
	Strategy Strategy        `json:"strategy"`
	// Enriched is false when solve timestamps could not be attached
	Enriched bool `json:"enriched"`
}

type topicTag struct {
	Name string `json:"name"`
}

type questionNode struct {
	TitleSlug  string     `json:"titleSlug"`
	Title      string     `json:"title"`
	Difficulty string     `json:"difficulty"`
	TopicTags  []topicTag `json:"topicTags"`
}

func (q questionNode) solved() SolvedProblem {
	tags := make([]string, 0, len(q.TopicTags))
	for _, t := range q.TopicTags {
		tags = append(tags, t.Name)
	}
	return SolvedProblem{Slug: q.TitleSlug, Title: q.Title, Difficulty: q.Difficulty, Tags: tags}
}

type recentSubmission struct {
	TitleSlug string `json:"titleSlug"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
}

const questionListQuery = `
	query problemsetQuestionList($categorySlug: String, $limit: Int, $skip: Int, $filters: QuestionListFilterInput) {
		problemsetQuestionList: questionList(
			categorySlug: $categorySlug
			limit: $limit
			skip: $skip
			filters: $filters
		) {
			total: totalNum
			questions: data {
				titleSlug
				title
				difficulty
				topicTags {
					name
				}
			}
		}
	}
`

const recentSubmissionsQuery = `
	query recentAcSubmissions($username: String!, $limit: Int!) {
		recentAcSubmissionList(username: $username, limit: $limit) {
			titleSlug
			title
			timestamp
		}
	}
`

const problemDetailsQuery = `
	query getProblemDetails($titleSlug: String!) {
		question(titleSlug: $titleSlug) {
			titleSlug
			title
			difficulty
			topicTags {
				name
			}
		}
	}
`

// FetchSolvedProblems lists every problem the user has an accepted submission for.
// The paged problem set is tried first; only if it fails is the list rebuilt from
// recent submissions. An empty problem set is a valid result, not a failure.
func (c *Client) FetchSolvedProblems(ctx context.Context, username string, creds Credentials) (*SolvedResult, error) {
	problems, err := c.fetchQuestionList(ctx, creds)
	if err != nil {
		c.log.Warn("question list failed, falling back to recent submissions", "username", username, "error", err)
		return c.fetchFromRecentSubmissions(ctx, username, creds)
	}

	result := &SolvedResult{Problems: problems, Strategy: StrategyQuestionList}
	if len(problems) == 0 {
		result.Enriched = true
		return result, nil
	}

	recent, err := c.fetchRecentSubmissions(ctx, username, creds)
	if err != nil {
		c.log.Warn("solve timestamps unavailable", "username", username, "error", err)
		return result, nil
	}
	latest := latestSolves(recent)
	for i := range result.Problems {
		if ts, ok := latest[result.Problems[i].Slug]; ok {
			result.Problems[i].LastSolvedAt = ts.at
		}
	}
	result.Enriched = true
	return result, nil
}

func (c *Client) fetchQuestionList(ctx context.Context, creds Credentials) ([]SolvedProblem, error) {
	problems := []SolvedProblem{}
	for skip := 0; ; skip += questionPageSize {
		var data struct {
			List *struct {
				Total     int            `json:"total"`
				Questions []questionNode `json:"questions"`
			} `json:"problemsetQuestionList"`
		}
		vars := map[string]interface{}{
			"categorySlug": "",
			"limit":        questionPageSize,
			"skip":         skip,
			"filters":      map[string]string{"status": "AC"},
		}
		if err := c.query(ctx, questionListQuery, vars, creds, &data); err != nil {
			return nil, err
		}
		if data.List == nil {
			return nil, errors.New("question list missing from response")
		}
		for _, q := range data.List.Questions {
			problems = append(problems, q.solved())
		}
		if len(data.List.Questions) < questionPageSize || skip+questionPageSize >= data.List.Total {
			return problems, nil
		}
	}
}

func (c *Client) fetchRecentSubmissions(ctx context.Context, username string, creds Credentials) ([]recentSubmission, error) {
	var data struct {
		List []recentSubmission `json:"recentAcSubmissionList"`
	}
	vars := map[string]interface{}{"username": username, "limit": recentLimit}
	if err := c.query(ctx, recentSubmissionsQuery, vars, creds, &data); err != nil {
		return nil, errors.Wrap(err, "failed to fetch recent submissions")
	}
	return data.List, nil
}

type solve struct {
	title string
	at    *time.Time
}

// latestSolves keeps the first (most recent) submission per slug
func latestSolves(recent []recentSubmission) map[string]solve {
	out := make(map[string]solve, len(recent))
	for _, s := range recent {
		if _, ok := out[s.TitleSlug]; ok {
			continue
		}
		out[s.TitleSlug] = solve{title: s.Title, at: parseTimestamp(s.Timestamp)}
	}
	return out
}

func parseTimestamp(s string) *time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}

func (c *Client) fetchFromRecentSubmissions(ctx context.Context, username string, creds Credentials) (*SolvedResult, error) {
	recent, err := c.fetchRecentSubmissions(ctx, username, creds)
	if err != nil {
		return nil, err
	}

	var slugs []string
	seen := make(map[string]struct{}, len(recent))
	for _, s := range recent {
		if _, ok := seen[s.TitleSlug]; ok {
			continue
		}
		seen[s.TitleSlug] = struct{}{}
		slugs = append(slugs, s.TitleSlug)
	}
	latest := latestSolves(recent)

	problems := make([]SolvedProblem, len(slugs))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)
	for i, slug := range slugs {
		i, slug := i, slug
		g.Go(func() error {
			s := latest[slug]
			p, err := c.fetchProblemDetails(gctx, slug, creds)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				failed++
				mu.Unlock()
				p = SolvedProblem{Slug: slug, Title: s.title, Difficulty: unknownDifficulty, Tags: []string{}}
			}
			p.LastSolvedAt = s.at
			problems[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "failed to load problem details")
	}
	if failed > 0 {
		c.log.Warn("some problem details unavailable", "username", username, "failed", failed, "total", len(slugs))
	}

	return &SolvedResult{Problems: problems, Strategy: StrategyRecentSubmissions, Enriched: true}, nil
}

func (c *Client) fetchProblemDetails(ctx context.Context, slug string, creds Credentials) (SolvedProblem, error) {
	var data struct {
		Question *questionNode `json:"question"`
	}
	if err := c.query(ctx, problemDetailsQuery, map[string]interface{}{"titleSlug": slug}, creds, &data); err != nil {
		return SolvedProblem{}, err
	}
	if data.Question == nil {
		return SolvedProblem{}, errors.Errorf("problem %s not found", slug)
	}
	p := data.Question.solved()
	if p.Slug == "" {
		p.Slug = slug
	}
	return p, nil
}
