// Package leetcode talks to the LeetCode GraphQL API on behalf of a user.
package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/example/codecycle/internal/logger"
)

// DefaultBaseURL is the public LeetCode site
const DefaultBaseURL = "https://leetcode.com"

// Credentials are the browser cookies that authenticate GraphQL calls
type Credentials struct {
	SessionCookie string
	CSRFToken     string
}

// Options configures a Client
type Options struct {
	BaseURL    string
	RPS        float64 // Requests per second across all users
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client is a rate limited LeetCode GraphQL client
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient creates a client, filling unset options with defaults
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RPS <= 0 {
		opts.RPS = 2
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Client{
		baseURL: opts.BaseURL,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), 1),
		log:     opts.Logger.Component("leetcode"),
	}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// query runs one GraphQL request and decodes its data into out.
// A non-2xx status, a GraphQL error or a missing data object all fail.
func (c *Client) query(ctx context.Context, query string, vars map[string]interface{}, creds Credentials, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit wait")
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return errors.Wrap(err, "failed to encode graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", fmt.Sprintf("LEETCODE_SESSION=%s; csrftoken=%s", creds.SessionCookie, creds.CSRFToken))
	req.Header.Set("x-csrftoken", creds.CSRFToken)
	req.Header.Set("Referer", c.baseURL)
	req.Header.Set("Origin", c.baseURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "leetcode request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return errors.Errorf("leetcode api error: %d", resp.StatusCode)
	}

	var gql graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gql); err != nil {
		return errors.Wrap(err, "failed to decode graphql response")
	}
	if len(gql.Errors) > 0 {
		return errors.Errorf("graphql error: %s", gql.Errors[0].Message)
	}
	if len(gql.Data) == 0 || string(gql.Data) == "null" {
		return errors.New("no data returned from leetcode")
	}
	if err := json.Unmarshal(gql.Data, out); err != nil {
		return errors.Wrap(err, "failed to decode graphql data")
	}
	return nil
}
