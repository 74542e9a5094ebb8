package commitments

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogRecorder appends commitments to a JSONL file, one promise per line.
type LogRecorder struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewLogRecorder creates the commitment log at path.
func NewLogRecorder(path string, logger zerolog.Logger) (*LogRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create commitments directory: %w", err)
	}

	return &LogRecorder{
		path:   path,
		logger: logger.With().Str("component", "commitments").Logger(),
	}, nil
}

// Record appends one commitment line.
func (r *LogRecorder) Record(ctx context.Context, c Commitment) error {
	if c.NotedAt.IsZero() {
		c.NotedAt = time.Now()
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal commitment: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open commitments log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write commitment: %w", err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync commitments log: %w", err)
	}

	r.logger.Info().
		Str("customer_id", c.CustomerID).
		Str("commitment_date", c.CommitmentDate).
		Msg("Commitment recorded")

	return nil
}

// List reads back all recorded commitments. Corrupt lines are skipped with
// a warning, matching how session files are read.
func (r *LogRecorder) List(ctx context.Context) ([]Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Commitment{}, nil
		}
		return nil, fmt.Errorf("failed to open commitments log: %w", err)
	}
	defer file.Close()

	var commitments []Commitment
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var c Commitment
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			r.logger.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse commitment line, skipping")
			continue
		}
		commitments = append(commitments, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commitments log: %w", err)
	}

	return commitments, nil
}

// Close is a no-op for the log recorder.
func (r *LogRecorder) Close() error {
	return nil
}
