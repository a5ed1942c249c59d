package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/codecycle/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestValidateSettingsUpdate(t *testing.T) {
	tests := []struct {
		name    string
		update  *models.UpdateSettings
		wantErr string
	}{
		{"nil", nil, "no valid fields to update"},
		{"empty", &models.UpdateSettings{}, "no valid fields to update"},
		{"goal low", &models.UpdateSettings{DailyGoal: intPtr(0)}, "dailyGoal must be between 1 and 20"},
		{"goal high", &models.UpdateSettings{DailyGoal: intPtr(21)}, "dailyGoal must be between 1 and 20"},
		{"new high", &models.UpdateSettings{MaxNewPerDay: intPtr(11)}, "maxNewPerDay must be between 1 and 10"},
		{"interval low", &models.UpdateSettings{DefaultInterval: intPtr(0)}, "defaultInterval must be between 1 and 30"},
		{"interval high", &models.UpdateSettings{DefaultInterval: intPtr(31)}, "defaultInterval must be between 1 and 30"},
		{"bounds inclusive", &models.UpdateSettings{DailyGoal: intPtr(20), MaxNewPerDay: intPtr(1), DefaultInterval: intPtr(30)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSettingsUpdate(tt.update)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSettings)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestUpdateSettings(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, PolicyDueFirst)
	user := newTestUser(5, 2, 7)

	got, err := svc.UpdateSettings(context.Background(), user, &models.UpdateSettings{DailyGoal: intPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, 12, got.DailyGoal)
	assert.Equal(t, models.DefaultSettings().MaxNewPerDay, got.MaxNewPerDay)

	_, err = svc.UpdateSettings(context.Background(), user, &models.UpdateSettings{MaxNewPerDay: intPtr(99)})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, 12, store.settings[testUserID].DailyGoal)

	store.failOn["UpdateSettings"] = true
	_, err = svc.UpdateSettings(context.Background(), user, &models.UpdateSettings{DailyGoal: intPtr(3)})
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)

	_, err = svc.UpdateSettings(context.Background(), nil, &models.UpdateSettings{DailyGoal: intPtr(3)})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
