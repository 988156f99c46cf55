package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/fingest/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fingest",
	Short: "Financial report PDF extraction and question context selection",
	Long: `Fingest extracts text, tables and key figures from financial report PDFs
and selects the passages most relevant to a question across two reports.

Each page is classified (plain text, structured text, financial content,
complex financial table) and extracted with the matching strategy:
  - text layer for plain pages
  - layout reconstruction for structured pages and tables
  - image recognition (Tesseract) for complex tables, when installed

Reports are cached in SQLite by content hash; the same engine backs the
HTTP API started by "fingest serve".`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./fingest.yaml or ~/.fingest/fingest.yaml)",
	)
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
}

// loadConfig resolves configuration with cmd's flags taking precedence.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string, json bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// cliLogger logs to stderr so stdout stays clean for reports and answers.
func cliLogger(cfg config.Config) *slog.Logger {
	return newLogger(os.Stderr, cfg.LogLevel, false)
}
