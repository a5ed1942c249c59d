package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Bot API token from BotFather
	Token string
	// Long-polling timeout in seconds
	UpdateTimeout int
	// Time budget for handling one update
	HandlerTimeout time.Duration
}

// DefaultConfig returns the default bot configuration
func DefaultConfig(token string) *BotConfig {
	return &BotConfig{
		Token:          token,
		UpdateTimeout:  60,
		HandlerTimeout: 15 * time.Second,
	}
}
