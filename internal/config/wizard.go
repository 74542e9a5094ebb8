package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
}

// NewWizard creates a new configuration wizard
func NewWizard() *Wizard {
	return &Wizard{
		reader: bufio.NewReader(os.Stdin),
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Println("=== Jiya Configuration Wizard ===")
	fmt.Println()

	cfg := DefaultConfig()
	validator := NewValidator()

	// Provider profile
	fmt.Println("AI provider (at least one profile is required):")
	fmt.Println()

	var provider string
	for {
		fmt.Print("Provider (groq/anthropic/openai) [groq]: ")
		p, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if p == "" {
			p = "groq"
		}
		p = strings.ToLower(p)
		if p != "groq" && p != "anthropic" && p != "openai" {
			fmt.Printf("Error: unknown provider %s\n", p)
			continue
		}
		provider = p
		break
	}

	for {
		fmt.Printf("%s API Key: ", provider)
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if key == "" {
			fmt.Println("Error: API key is required")
			continue
		}

		if err := validator.ValidateAPIKey(key, provider); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{
			ID:       provider,
			Provider: provider,
			APIKey:   key,
			Priority: 1,
		})
		break
	}

	fmt.Println()

	// Model
	fmt.Println("Model:")
	fmt.Printf("Model name [%s]: ", cfg.Agent.Model)
	model, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if model != "" {
		cfg.Agent.Model = model
	}

	fmt.Println()

	// Loan book
	fmt.Println("Customer records:")
	fmt.Print("Loan book path (press Enter for default): ")
	path, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.Records.Path = path
	}

	fmt.Println()

	// Gateway
	fmt.Println("Gateway:")
	fmt.Printf("Listen port [%d]: ", cfg.Gateway.Port)
	portStr, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			fmt.Printf("Warning: invalid port %s, using default (%d)\n", portStr, cfg.Gateway.Port)
		} else {
			cfg.Gateway.Port = port
		}
	}

	fmt.Println()

	// Log Level
	fmt.Println("Logging:")
	fmt.Print("Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Printf("Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Println()
	fmt.Println("Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
