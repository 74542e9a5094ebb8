package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		key      string
		provider string
		wantErr  bool
	}{
		{"valid anthropic key", "sk-ant-api03-abc123", "anthropic", false},
		{"invalid anthropic key", "sk-abc123", "anthropic", true},
		{"valid openai key", "sk-abc123", "openai", false},
		{"invalid openai key", "abc123", "openai", true},
		{"valid groq key", "gsk_abc123", "groq", false},
		{"invalid groq key", "sk-abc123", "groq", true},
		{"empty key", "", "groq", true},
		{"unknown provider accepts any", "whatever", "custom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateModel(t *testing.T) {
	v := NewValidator()

	t.Run("known model", func(t *testing.T) {
		assert.NoError(t, v.ValidateModel("llama-3.1-8b-instant"))
	})

	t.Run("custom model allowed", func(t *testing.T) {
		assert.NoError(t, v.ValidateModel("my-custom-model"))
	})

	t.Run("empty model rejected", func(t *testing.T) {
		assert.Error(t, v.ValidateModel(""))
	})
}

func TestValidateTemperature(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTemperature(0))
	assert.NoError(t, v.ValidateTemperature(0.7))
	assert.NoError(t, v.ValidateTemperature(2))
	assert.Error(t, v.ValidateTemperature(-0.1))
	assert.Error(t, v.ValidateTemperature(2.1))
}

func TestValidateMaxTokens(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateMaxTokens(1024))
	assert.Error(t, v.ValidateMaxTokens(0))
	assert.Error(t, v.ValidateMaxTokens(-1))
	assert.Error(t, v.ValidateMaxTokens(300000))
}

func TestValidateMaxRounds(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateMaxRounds(1))
	assert.NoError(t, v.ValidateMaxRounds(8))
	assert.Error(t, v.ValidateMaxRounds(0))
	assert.Error(t, v.ValidateMaxRounds(100))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("verbose"))
	assert.Error(t, v.ValidateLogLevel(""))
}

func TestValidateSweepSchedule(t *testing.T) {
	v := NewValidator()

	t.Run("empty uses default", func(t *testing.T) {
		assert.NoError(t, v.ValidateSweepSchedule(""))
	})

	t.Run("interval descriptor", func(t *testing.T) {
		assert.NoError(t, v.ValidateSweepSchedule("@every 5m"))
	})

	t.Run("standard cron expression", func(t *testing.T) {
		assert.NoError(t, v.ValidateSweepSchedule("*/5 * * * *"))
	})

	t.Run("garbage rejected", func(t *testing.T) {
		assert.Error(t, v.ValidateSweepSchedule("every five minutes"))
	})
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("valid config has no errors", func(t *testing.T) {
		cfg := validTestConfig()
		errs := v.ValidateConfig(cfg)
		assert.Empty(t, errs)
	})

	t.Run("collects multiple errors", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.AI.Profiles[0].APIKey = "bad-key"
		cfg.Agent.MaxRounds = 0
		cfg.Logging.Level = "loud"
		cfg.Session.SweepSchedule = "nope"

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 4)
	})
}
