package cli

import (
	"context"
	"fmt"

	"github.com/harun/jiya/internal/config"
	"github.com/harun/jiya/pkg/recordstore"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and loan book",
	Long: `Validate the Jiya configuration without starting the daemon.
Checks provider credentials, agent settings, and that the customer
loan book can be opened.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fmt.Printf("Config: %s\n", loader.GetConfigPath())

	// Match what serve would run with
	mergeEnvProfiles(cfg)

	var problems []error
	if err := cfg.Validate(); err != nil {
		problems = append(problems, err)
	}
	problems = append(problems, config.NewValidator().ValidateConfig(cfg)...)

	// Probe the loan book without the reload watcher
	recordsCfg := cfg.Records
	recordsCfg.WatchReload = false
	store, err := recordstore.New(recordsCfg, zerolog.Nop())
	if err != nil {
		problems = append(problems, fmt.Errorf("records: %w", err))
	} else {
		count, countErr := store.Count(context.Background())
		if countErr != nil {
			problems = append(problems, fmt.Errorf("records: %w", countErr))
		} else {
			fmt.Printf("Loan book: %d records (%s)\n", count, cfg.Records.Path)
		}
		store.Close()
	}

	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Printf("  error: %v\n", p)
		}
		return fmt.Errorf("configuration has %d problem(s)", len(problems))
	}

	fmt.Println("Configuration OK")
	return nil
}
