package config

import (
	"os"
	"testing"
	"time"

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

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "HEIST_MODE_DURATION", "5m")
	setEnv(t, "FEED_SIZE", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.HeistModeDuration)
	assert.Equal(t, 20, cfg.FeedSize)
	assert.Equal(t, DefaultDefenseTickInterval, cfg.DefenseTickInterval)
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "HEIST_MODE_DURATION", "DEFENSE_TICK_INTERVAL", "FEED_SIZE", "RNG_SEED"} {
		setEnv(t, key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultHeistModeDuration, cfg.HeistModeDuration)
	assert.Equal(t, DefaultFeedSize, cfg.FeedSize)
	assert.Equal(t, int64(0), cfg.RNGSeed)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid config",
			config: Config{
				Env:                 "development",
				HeistModeDuration:   10 * time.Minute,
				DefenseTickInterval: 30 * time.Second,
				FeedSize:            15,
			},
			wantErr: "",
		},
		{
			name: "zero heist duration",
			config: Config{
				Env:                 "development",
				DefenseTickInterval: 30 * time.Second,
				FeedSize:            15,
			},
			wantErr: "HEIST_MODE_DURATION must be positive",
		},
		{
			name: "zero tick interval",
			config: Config{
				Env:               "development",
				HeistModeDuration: 10 * time.Minute,
				FeedSize:          15,
			},
			wantErr: "DEFENSE_TICK_INTERVAL must be positive",
		},
		{
			name: "zero feed size",
			config: Config{
				Env:                 "development",
				HeistModeDuration:   10 * time.Minute,
				DefenseTickInterval: 30 * time.Second,
			},
			wantErr: "FEED_SIZE must be positive",
		},
		{
			name: "seeded rng in production",
			config: Config{
				Env:                 "production",
				HeistModeDuration:   10 * time.Minute,
				DefenseTickInterval: 30 * time.Second,
				FeedSize:            15,
				RNGSeed:             42,
			},
			wantErr: "RNG_SEED must not be set in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvDuration(t *testing.T) {
	setEnv(t, "TEST_DUR", "45s")
	setEnv(t, "TEST_DUR_INVALID", "soon")

	assert.Equal(t, 45*time.Second, getEnvDuration("TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("NONEXISTENT_VAR", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DUR_INVALID", time.Minute))
}
