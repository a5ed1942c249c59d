package models

import "time"

// Settings bounds
const (
	MinDailyGoal       = 1
	MaxDailyGoal       = 20
	MinMaxNewPerDay    = 1
	MaxMaxNewPerDay    = 10
	MinDefaultInterval = 1
	MaxDefaultInterval = 30
)

// Settings are the per-user scheduling limits
type Settings struct {
	DailyGoal       int `json:"dailyGoal" db:"daily_goal"`             // Problems to present per day
	MaxNewPerDay    int `json:"maxNewPerDay" db:"max_new_per_day"`     // Cap on never-reviewed problems per day
	DefaultInterval int `json:"defaultInterval" db:"default_interval"` // Freshness cutoff in days
}

// DefaultSettings returns the settings a new user starts with
func DefaultSettings() Settings {
	return Settings{
		DailyGoal:       5,
		MaxNewPerDay:    2,
		DefaultInterval: 7,
	}
}

// UpdateSettings is a partial settings update; nil fields are left unchanged
type UpdateSettings struct {
	DailyGoal       *int `json:"dailyGoal,omitempty"`
	MaxNewPerDay    *int `json:"maxNewPerDay,omitempty"`
	DefaultInterval *int `json:"defaultInterval,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u *UpdateSettings) IsEmpty() bool {
	return u == nil || (u.DailyGoal == nil && u.MaxNewPerDay == nil && u.DefaultInterval == nil)
}

// User is a learner linked to a LeetCode account
type User struct {
	ID             string    `json:"id" db:"id"`
	LeetUsername   string    `json:"leetUsername" db:"leet_username"`
	SessionCookie  string    `json:"-" db:"session_cookie"` // Sealed
	CSRFToken      string    `json:"-" db:"csrf_token"`     // Sealed
	TelegramChatID *int64    `json:"-" db:"telegram_chat_id"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
	Settings
}

// HasCredentials reports whether sealed LeetCode credentials are stored
func (u *User) HasCredentials() bool {
	return u.SessionCookie != "" && u.CSRFToken != ""
}
