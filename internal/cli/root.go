package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/pricewatch/internal/control"
	"github.com/vietddude/pricewatch/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "pricewatch",
	Short: "Resilient price feed service",
	Long: `pricewatch polls price APIs through ordered fallback chains, tracks feed health
and classifies error reports against the capabilities this deployment declares.`,
	Run: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll every configured feed and serve state, health and metrics",
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads .env and the config file, then initializes logging.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)
	return cfg
}

func setupLogging(cfg config.LoggingConfig) {
	level := parseLevel(cfg.Level)
	if cfg.Format == config.LogFormatJSON {
		slog.SetDefault(newJSONLogger(os.Stderr, level))
		return
	}

	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

func parseLevel(level string) slog.Level {
	switch {
	case isDebug || level == "debug":
		return slog.LevelDebug
	case level == "warn":
		return slog.LevelWarn
	case level == "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newJSONLogger is used when logs are shipped to a collector instead of a terminal.
func newJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := signalContext()
	defer cancel()

	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize pricewatch", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("pricewatch started", "config", cfgPath, "feeds", len(cfg.Feeds), "port", cfg.Server.Port)

	if err := app.Run(ctx); err != nil {
		slog.Error("pricewatch stopped with error", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
