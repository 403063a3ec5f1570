package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "DAILY_UNIT_LIMIT", "")
	setEnv(t, "PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultDailyUnitLimit, cfg.Limits.DailyUnitLimit)
	assert.Equal(t, DefaultYellowThreshold, cfg.Limits.YellowThreshold)
	assert.Equal(t, DefaultRedThreshold, cfg.Limits.RedThreshold)
	assert.Equal(t, DefaultBulkThresholdML, cfg.Limits.BulkThresholdML)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "DAILY_UNIT_LIMIT", "25.5")
	setEnv(t, "HIGH_FREQUENCY_THRESHOLD", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 25.5, cfg.Limits.DailyUnitLimit)
	assert.Equal(t, 12, cfg.Limits.HighFrequencyThreshold)
}

func TestLoad_InvalidLimit(t *testing.T) {
	setEnv(t, "DAILY_UNIT_LIMIT", "-5")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DAILY_UNIT_LIMIT")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		wantErr string
	}{
		{
			name:   "valid defaults",
			limits: DefaultLimits(),
		},
		{
			name: "inverted thresholds",
			limits: Limits{
				DailyUnitLimit:  40,
				YellowThreshold: 80,
				RedThreshold:    70,
				BulkThresholdML: 1000,
			},
			wantErr: "RISK_THRESHOLD_YELLOW",
		},
		{
			name: "zero bulk threshold",
			limits: Limits{
				DailyUnitLimit:  40,
				YellowThreshold: 40,
				RedThreshold:    70,
			},
			wantErr: "BULK_PURCHASE_THRESHOLD_ML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Limits: tt.limits}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
