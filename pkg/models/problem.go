package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Difficulty is the catalog difficulty of a problem
type Difficulty string

const (
	DifficultyEasy    Difficulty = "Easy"
	DifficultyMedium  Difficulty = "Medium"
	DifficultyHard    Difficulty = "Hard"
	DifficultyUnknown Difficulty = "Unknown"
)

// ParseDifficulty maps a catalog string to a Difficulty, falling back to Unknown
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "medium":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	default:
		return DifficultyUnknown
	}
}

// UncategorizedTopic is the topic of a problem without tags
const UncategorizedTopic = "Uncategorized"

// Tags is an ordered list of topic tags stored as a JSON array
type Tags []string

// Value implements driver.Valuer
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (t *Tags) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported tags type %T", src)
	}
	if len(raw) == 0 {
		*t = Tags{}
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return fmt.Errorf("failed to parse tags: %v", err)
	}
	*t = tags
	return nil
}

// Problem is a catalog entry the learner has solved at some point
type Problem struct {
	ID         int64      `json:"id" db:"id"`
	Slug       string     `json:"slug" db:"slug"`
	Title      string     `json:"title" db:"title"`
	Difficulty Difficulty `json:"difficulty" db:"difficulty"`
	Tags       Tags       `json:"tags" db:"tags"`
	SolvedAt   *time.Time `json:"solvedAt,omitempty" db:"solved_at"` // Absent when the solve history is unknown
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

// PrimaryTopic returns the first tag, used to group problems
func (p *Problem) PrimaryTopic() string {
	if len(p.Tags) == 0 || strings.TrimSpace(p.Tags[0]) == "" {
		return UncategorizedTopic
	}
	return p.Tags[0]
}

// TopicGroup is a set of problems sharing a primary topic
type TopicGroup struct {
	Topic    string     `json:"topic"`
	Problems []*Problem `json:"problems"`
}
