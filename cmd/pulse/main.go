// Package main is the entry point for the pulse market terminal.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyinsider/pulse/internal/config"
)

var (
	cfg *config.Config

	flagLogLevel string
	flagPresets  string
)

// rootCmd runs the dashboard.
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Prediction-market terminal with particle effects",
	Long: `pulse polls a prediction-market API, follows realtime market changes and
turns notable moves into signals. In TUI mode signals are celebrated with
particle effects drawn over the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			loaded.LogLevel = flagLogLevel
		}
		if flagPresets != "" {
			loaded.PresetsFile = flagPresets
		}
		cfg = loaded
		slog.SetDefault(setupLogger(cfg.LogLevel, os.Stderr))
		return nil
	},
	RunE: runDashboard,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&flagPresets, "presets", "", "YAML file with extra or overridden effect presets")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger creates a structured logger with the specified level writing
// to w.
// Format: 2025-01-04 14:32:01 [INFO]  message key=value
func setupLogger(levelStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	handler := slog.NewTextHandler(w, opts)
	return slog.New(handler)
}

// openLogFile opens path for appending. The TUI owns the terminal, so logs
// go to a file while it runs.
func openLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// truncateID shortens an ID for logging.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "..." + id[len(id)-4:]
}
