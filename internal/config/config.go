package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Jiya configuration
type Config struct {
	// Agent persona and loop settings
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// AI provider profiles
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Gateway server
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Session persistence
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Customer loan records
	Records RecordsConfig `json:"records" mapstructure:"records"`

	// Payment commitment sink
	Commitments CommitmentsConfig `json:"commitments" mapstructure:"commitments"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AgentConfig holds the collection agent persona and loop settings
type AgentConfig struct {
	PersonaName         string  `json:"persona_name" mapstructure:"persona_name"`
	CompanyName         string  `json:"company_name" mapstructure:"company_name"`
	Profile             string  `json:"profile" mapstructure:"profile"` // AI profile id, empty picks highest priority
	Model               string  `json:"model" mapstructure:"model"`
	Temperature         float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens           int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxRounds           int     `json:"max_rounds" mapstructure:"max_rounds"`
	ModelTimeoutSeconds int     `json:"model_timeout_seconds" mapstructure:"model_timeout_seconds"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // groq, anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Port         int    `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// SessionConfig holds session store configuration
type SessionConfig struct {
	Backend        string `json:"backend" mapstructure:"backend"` // memory, file
	Dir            string `json:"dir" mapstructure:"dir"`
	IdleTTLMinutes int    `json:"idle_ttl_minutes" mapstructure:"idle_ttl_minutes"`
	SweepSchedule  string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// RecordsConfig holds customer record store configuration
type RecordsConfig struct {
	Backend     string `json:"backend" mapstructure:"backend"` // book, sqlite
	Path        string `json:"path" mapstructure:"path"`
	WatchReload bool   `json:"watch_reload" mapstructure:"watch_reload"`
}

// CommitmentsConfig holds commitment recorder configuration
type CommitmentsConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // log, sqlite
	Path    string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			PersonaName:         "Jiya",
			CompanyName:         "ABC Finance",
			Model:               "llama-3.1-8b-instant",
			Temperature:         0.7,
			MaxTokens:           1024,
			MaxRounds:           8,
			ModelTimeoutSeconds: 30,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
		Gateway: GatewayConfig{
			Port:         8000,
			Host:         "0.0.0.0",
			SharedSecret: "",
		},
		Session: SessionConfig{
			Backend:        "memory",
			IdleTTLMinutes: 1440,
			SweepSchedule:  "@every 5m",
		},
		Records: RecordsConfig{
			Backend:     "book",
			WatchReload: true,
		},
		Commitments: CommitmentsConfig{
			Backend: "log",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Require at least one AI profile
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}

	// Validate AI profiles
	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		validProviders := []string{"groq", "anthropic", "openai"}
		valid := false
		for _, vp := range validProviders {
			if profile.Provider == vp {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: groq, anthropic, openai)", profile.ID, profile.Provider)
		}
	}

	// Validate agent
	if c.Agent.Model == "" {
		return fmt.Errorf("agent model is required")
	}
	if c.Agent.MaxRounds < 1 {
		return fmt.Errorf("agent max_rounds must be at least 1, got %d", c.Agent.MaxRounds)
	}
	if c.Agent.ModelTimeoutSeconds < 1 {
		return fmt.Errorf("agent model_timeout_seconds must be at least 1, got %d", c.Agent.ModelTimeoutSeconds)
	}

	// Validate session store
	if c.Session.Backend != "memory" && c.Session.Backend != "file" {
		return fmt.Errorf("invalid session backend %s (must be: memory, file)", c.Session.Backend)
	}
	if c.Session.IdleTTLMinutes < 0 {
		return fmt.Errorf("session idle_ttl_minutes must be >= 0")
	}

	// Validate record store
	if c.Records.Backend != "book" && c.Records.Backend != "sqlite" {
		return fmt.Errorf("invalid records backend %s (must be: book, sqlite)", c.Records.Backend)
	}

	// Validate commitment recorder
	if c.Commitments.Backend != "log" && c.Commitments.Backend != "sqlite" {
		return fmt.Errorf("invalid commitments backend %s (must be: log, sqlite)", c.Commitments.Backend)
	}

	// Validate gateway
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port %d", c.Gateway.Port)
	}

	return nil
}
