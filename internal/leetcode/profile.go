package leetcode

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidCredentials is returned when the cookies do not belong to the username
var ErrInvalidCredentials = errors.New("invalid leetcode credentials")

// DifficultyCount is the number of accepted problems of one difficulty
type DifficultyCount struct {
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

// Profile is the public part of a LeetCode account
type Profile struct {
	Username string            `json:"username"`
	Solved   []DifficultyCount `json:"solved"`
}

const profileQuery = `
	query getUserProfile($username: String!) {
		matchedUser(username: $username) {
			username
			submitStatsGlobal {
				acSubmissionNum {
					difficulty
					count
				}
			}
		}
	}
`

// FetchUserProfile returns the account's username and solved counts
func (c *Client) FetchUserProfile(ctx context.Context, username string, creds Credentials) (*Profile, error) {
	var data struct {
		MatchedUser *struct {
			Username          string `json:"username"`
			SubmitStatsGlobal struct {
				AcSubmissionNum []DifficultyCount `json:"acSubmissionNum"`
			} `json:"submitStatsGlobal"`
		} `json:"matchedUser"`
	}
	if err := c.query(ctx, profileQuery, map[string]interface{}{"username": username}, creds, &data); err != nil {
		return nil, errors.Wrap(err, "failed to fetch user profile")
	}
	if data.MatchedUser == nil {
		return nil, errors.Errorf("leetcode user %q not found", username)
	}
	return &Profile{
		Username: data.MatchedUser.Username,
		Solved:   data.MatchedUser.SubmitStatsGlobal.AcSubmissionNum,
	}, nil
}

// ValidateCredentials checks that the cookies authenticate as username.
// Every failure, including an unreachable API, is reported as ErrInvalidCredentials.
func (c *Client) ValidateCredentials(ctx context.Context, username string, creds Credentials) error {
	profile, err := c.FetchUserProfile(ctx, username, creds)
	if err != nil {
		c.log.Warn("credential check failed", "username", username, "error", err)
		return errors.Wrap(ErrInvalidCredentials, err.Error())
	}
	if !strings.EqualFold(profile.Username, username) {
		return ErrInvalidCredentials
	}
	return nil
}
