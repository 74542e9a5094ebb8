package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/harun/jiya/internal/config"
	"github.com/harun/jiya/internal/daemon"
	"github.com/harun/jiya/internal/logger"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Jiya daemon service",
	Long: `Start the Jiya daemon service in the foreground.
The daemon answers collection calls over the HTTP gateway until it
receives SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// API keys from the environment fill in missing provider profiles
	mergeEnvProfiles(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Check if daemon is already running
	pidFile := filepath.Join(cfg.DataDir, "jiya.pid")
	if isRunning(pidFile) {
		return fmt.Errorf("daemon is already running (PID file: %s)", pidFile)
	}

	// Build the logger, --log-level beats the config file when set
	level := cfg.Logging.Level
	if flag := cmd.Flag("log-level"); flag != nil && flag.Changed {
		level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:     level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}

	if err := d.Start(); err != nil {
		return err
	}

	fmt.Printf("Jiya daemon started (gateway %s)\n", d.Status().GatewayAddr)
	fmt.Println("Press Ctrl+C to stop")

	// Block until SIGINT or SIGTERM, then stop gracefully
	d.Wait()

	return nil
}

// mergeEnvProfiles appends provider profiles for API keys found in the
// environment. Profiles from the config file win over the environment:
// a provider already configured is left untouched.
func mergeEnvProfiles(cfg *config.Config) {
	envProfiles := []struct {
		envVar   string
		provider string
		priority int
	}{
		{"GROQ_API_KEY", "groq", 1},
		{"ANTHROPIC_API_KEY", "anthropic", 2},
		{"OPENAI_API_KEY", "openai", 3},
	}

	for _, ep := range envProfiles {
		key := os.Getenv(ep.envVar)
		if key == "" || hasProviderProfile(cfg, ep.provider) {
			continue
		}

		cfg.AI.Profiles = append(cfg.AI.Profiles, config.AIProfile{
			ID:       ep.provider,
			Provider: ep.provider,
			APIKey:   key,
			Priority: ep.priority,
		})
	}
}

func hasProviderProfile(cfg *config.Config, provider string) bool {
	for _, profile := range cfg.AI.Profiles {
		if profile.Provider == provider {
			return true
		}
	}
	return false
}

// getPIDFilePath resolves the PID file for the configured data directory.
func getPIDFilePath() string {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "/tmp/jiya.pid"
		}
		return filepath.Join(home, ".jiya", "jiya.pid")
	}
	return filepath.Join(cfg.DataDir, "jiya.pid")
}

// readPID reads the process ID recorded in pidFile.
func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}

	return pid, nil
}

func isRunning(pidFile string) bool {
	if _, err := os.Stat(pidFile); os.IsNotExist(err) {
		return false
	}

	pid, err := readPID(pidFile)
	if err != nil {
		return false
	}

	// Check if process exists
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
