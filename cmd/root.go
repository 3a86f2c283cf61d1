package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iqtlabs/gamutrf/internal/config"
	"github.com/iqtlabs/gamutrf/internal/service"
)

// LevelCritical sits above slog.LevelError for the critical log level.
const LevelCritical = slog.Level(12)

var (
	cfg     *config.Config
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "gamutrf",
	Short: "Queue and run SDR recordings over an HTTP API",
	Long: `gamutrf accepts recording requests for a software-defined radio and runs
them one at a time with the capture tool of the configured device
(ettus, bladerf or lime), optionally writing a SigMF metadata sidecar
next to each recording.

Settings come from flags, GAMUTRF_* environment variables (a .env file
in the working directory is loaded first) and an optional YAML file.`,
	Version:       service.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		flags := cmd.Flags()
		if flags.Changed("no-agc") {
			v.Set("agc", false)
		}
		if flags.Changed("no-sigmf") {
			v.Set("sigmf", false)
		}

		var err error
		cfg, err = config.Load(v, cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		setupLogging(cfg.LogLevel)
		slog.Debug("Configuration loaded", "config_file", cfgFile, "sdr", cfg.SDR, "path", cfg.Path)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.StringP("loglevel", "l", "info", "set logging level (critical, error, warning, info, debug)")
	flags.StringP("sdr", "s", "ettus", "SDR to record with (ettus, bladerf or lime)")
	flags.StringP("path", "P", "/data/gamutrf", "path prefix for writing out samples to")
	flags.IntP("port", "p", 8000, "port to run the API webserver on")
	flags.StringArrayP("freq_excluded", "e", nil, `freq range to exclude in MHz (e.g. "100-200"), repeatable`)
	flags.IntP("gain", "g", 0, "gain in dB")
	flags.Int("rxb", 20000000, "receive buffer size")
	flags.Bool("agc", true, "use AGC")
	flags.Bool("no-agc", false, "do not use AGC")
	flags.Bool("sigmf", true, "add sigmf meta file")
	flags.Bool("no-sigmf", false, "do not add sigmf meta file")
	flags.Duration("capture_timeout", 0, "kill a capture running longer than this (0 waits forever)")
	flags.Bool("history", true, "keep a SQLite history of recording jobs")
	flags.String("history_db", "", "job history database (default <path>/gamutrf_jobs.sqlite)")

	rootCmd.MarkFlagsMutuallyExclusive("agc", "no-agc")
	rootCmd.MarkFlagsMutuallyExclusive("sigmf", "no-sigmf")

	for _, key := range []string{
		"loglevel", "sdr", "path", "port", "freq_excluded", "gain", "rxb",
		"agc", "sigmf", "capture_timeout", "history", "history_db",
	} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", key, err))
		}
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(convertCmd)
}

// setupLogging configures slog from the loglevel setting
func setupLogging(level string) {
	var slogLevel slog.Level
	switch level {
	case "critical":
		slogLevel = LevelCritical
	case "error":
		slogLevel = slog.LevelError
	case "warning":
		slogLevel = slog.LevelWarn
	case "debug":
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}
