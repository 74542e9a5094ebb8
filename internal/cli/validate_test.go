package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/jiya/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeValidateConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	tmpDir := t.TempDir()

	bookPath := filepath.Join(tmpDir, "data.json")
	book := `{"C1001": {"customer_name": "Asha Rao", "total_due": 4500, "due_date": "2024-05-01", "dpd": 12}}`
	require.NoError(t, os.WriteFile(bookPath, []byte(book), 0644))

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.AI.Profiles = []config.AIProfile{
		{ID: "groq", Provider: "groq", APIKey: "gsk_test_key", Priority: 1},
	}
	cfg.Records.Path = bookPath
	cfg.Commitments.Path = filepath.Join(tmpDir, "commitments.jsonl")
	cfg.Session.Dir = filepath.Join(tmpDir, "sessions")
	cfg.Logging.File = filepath.Join(tmpDir, "jiya.log")
	if mutate != nil {
		mutate(cfg)
	}

	cfgPath := filepath.Join(tmpDir, "jiya.json")
	require.NoError(t, config.NewLoader(cfgPath).Save(cfg))

	return cfgPath
}

func TestValidateCommand(t *testing.T) {
	t.Run("command exists", func(t *testing.T) {
		cmd := GetRootCmd()

		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == "validate" {
				found = true
				break
			}
		}
		assert.True(t, found, "validate command should exist")
	})

	t.Run("help text", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"validate", "--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		// Executing --help leaves the shared command's help flag set;
		// reset it so later subtests run RunE instead of help again.
		if f := validateCmd.Flags().Lookup("help"); f != nil {
			require.NoError(t, f.Value.Set("false"))
			f.Changed = false
		}

		helpText := output.String()
		assert.Contains(t, helpText, "Validate the Jiya configuration")
	})

	t.Run("accepts a valid config", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "")

		cfgPath := writeValidateConfig(t, nil)
		defer func() { cfgFile = "" }()

		cmd := GetRootCmd()
		cmd.SetArgs([]string{"validate", "--config", cfgPath})
		cmd.SetOut(&bytes.Buffer{})

		err := cmd.Execute()
		require.NoError(t, err)
	})

	t.Run("rejects a malformed API key", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "")

		cfgPath := writeValidateConfig(t, func(cfg *config.Config) {
			cfg.AI.Profiles[0].APIKey = "not-a-groq-key"
		})
		defer func() { cfgFile = "" }()

		cmd := GetRootCmd()
		cmd.SetArgs([]string{"validate", "--config", cfgPath})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "problem")
	})
}
