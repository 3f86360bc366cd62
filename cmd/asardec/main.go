package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/asar-go/asardec/internal/config"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	cfgFile string

	verify      bool
	concurrency int
	onConflict  string
	logLevel    string
	logFormat   string
	noProgress  bool
)

var rootCmd = &cobra.Command{
	Use:   "asardec",
	Short: "Read, list and extract asar archives",
	Long: `asardec reads asar archives: single-file containers that pack a
directory tree (files, nested directories, symbolic links) behind a
length-prefixed JSON header.

It can list an archive's contents, extract a single file, extract the
whole tree to a directory, and dump the raw header for diagnostics.
Files marked "unpacked" are resolved against the <archive>.unpacked
sibling directory, and integrity metadata can be verified on request.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("verify") {
			cfg.Verify = verify
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Concurrency = concurrency
		}
		if cmd.Flags().Changed("on-conflict") {
			cfg.OnConflict = onConflict
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}

		var level slog.Level
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var handler slog.Handler
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
		} else {
			handler = tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})
		}

		logger := slog.New(handler)
		slog.SetDefault(logger)

		slog.Debug("Configuration",
			"verify", cfg.Verify,
			"concurrency", cfg.Concurrency,
			"on_conflict", cfg.OnConflict,
			"log_level", cfg.LogLevel,
			"log_format", cfg.LogFormat)

		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is asardec.yaml in pwd or home)")
	rootCmd.PersistentFlags().BoolVar(&verify, "verify", false, "verify file integrity when extracting")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "parallel file writes during extract (0 = one per CPU)")
	rootCmd.PersistentFlags().StringVar(&onConflict, "on-conflict", "", "behavior for existing files (overwrite, skip, error)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bar")
}
