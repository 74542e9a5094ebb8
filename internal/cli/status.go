package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/harun/jiya/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show the current status of the Jiya daemon service.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	pidFile := getPIDFilePath()

	if !isRunning(pidFile) {
		fmt.Println("Status: stopped")
		return nil
	}

	pid, err := readPID(pidFile)
	if err != nil {
		return err
	}

	fmt.Println("Status: running")
	fmt.Printf("PID: %d\n", pid)

	// PID file modification time doubles as the start time
	if fileInfo, err := os.Stat(pidFile); err == nil {
		uptime := time.Since(fileInfo.ModTime())
		fmt.Printf("Uptime: %s\n", formatDuration(uptime))
	}

	// Probe the gateway health endpoint
	if cfg, err := config.Load(cfgFile); err == nil {
		host := cfg.Gateway.Host
		if host == "0.0.0.0" || host == "" {
			host = "127.0.0.1"
		}
		url := fmt.Sprintf("http://%s:%d/healthz", host, cfg.Gateway.Port)

		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			fmt.Printf("Gateway: unreachable (%s)\n", url)
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				fmt.Printf("Gateway: healthy (%s)\n", url)
			} else {
				fmt.Printf("Gateway: unhealthy (%s returned %d)\n", url, resp.StatusCode)
			}
		}
	}

	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
