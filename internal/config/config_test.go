package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "Jiya", cfg.Agent.PersonaName)
	assert.Equal(t, "ABC Finance", cfg.Agent.CompanyName)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Agent.Model)
	assert.Equal(t, 8, cfg.Agent.MaxRounds)
	assert.Equal(t, 30, cfg.Agent.ModelTimeoutSeconds)

	assert.Equal(t, 8000, cfg.Gateway.Port)
	assert.Equal(t, "0.0.0.0", cfg.Gateway.Host)

	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 1440, cfg.Session.IdleTTLMinutes)
	assert.Equal(t, "@every 5m", cfg.Session.SweepSchedule)

	assert.Equal(t, "book", cfg.Records.Backend)
	assert.True(t, cfg.Records.WatchReload)

	assert.Equal(t, "log", cfg.Commitments.Backend)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
}

func validTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.AI.Profiles = []AIProfile{
		{ID: "groq", Provider: "groq", APIKey: "gsk_test1234567890abcdefghij", Priority: 1},
	}
	return cfg
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		cfg := validTestConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("requires at least one AI profile", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AI profile")
	})

	t.Run("rejects profile without ID", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.AI.Profiles[0].ID = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.AI.Profiles[0].Provider = "gemini"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid provider")
	})

	t.Run("rejects missing model", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Agent.Model = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects zero max rounds", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Agent.MaxRounds = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown session backend", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Session.Backend = "redis"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown records backend", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Records.Backend = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects invalid gateway port", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Gateway.Port = 0
		assert.Error(t, cfg.Validate())

		cfg.Gateway.Port = 70000
		assert.Error(t, cfg.Validate())
	})
}

func TestConfigString(t *testing.T) {
	cfg := validTestConfig()
	s := cfg.String()

	assert.True(t, strings.Contains(s, "llama-3.1-8b-instant"))
	assert.True(t, strings.Contains(s, "ABC Finance"))
}
