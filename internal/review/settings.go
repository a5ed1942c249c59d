package review

import (
	"context"
	"fmt"

	"github.com/example/codecycle/pkg/models"
)

// ValidateSettingsUpdate checks each present field against its bounds
func ValidateSettingsUpdate(update *models.UpdateSettings) error {
	if update.IsEmpty() {
		return invalidSettings("no valid fields to update")
	}
	if err := checkBounds("dailyGoal", update.DailyGoal, models.MinDailyGoal, models.MaxDailyGoal); err != nil {
		return err
	}
	if err := checkBounds("maxNewPerDay", update.MaxNewPerDay, models.MinMaxNewPerDay, models.MaxMaxNewPerDay); err != nil {
		return err
	}
	return checkBounds("defaultInterval", update.DefaultInterval, models.MinDefaultInterval, models.MaxDefaultInterval)
}

func checkBounds(field string, v *int, lo, hi int) error {
	if v == nil {
		return nil
	}
	if *v < lo || *v > hi {
		return invalidSettings(fmt.Sprintf("%s must be between %d and %d", field, lo, hi))
	}
	return nil
}

// UpdateSettings validates and applies a partial settings update
func (s *Service) UpdateSettings(ctx context.Context, user *models.User, update *models.UpdateSettings) (*models.Settings, error) {
	if user == nil || user.ID == "" {
		return nil, ErrNotAuthenticated
	}
	if err := ValidateSettingsUpdate(update); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	settings, err := s.settings.UpdateSettings(ctx, user.ID, update)
	if err != nil {
		return nil, unavailable(err, "update settings")
	}
	return settings, nil
}
