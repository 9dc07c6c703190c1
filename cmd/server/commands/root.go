package commands

import (
	"github.com/asisten-gizi/server/internal/config"
	"github.com/asisten-gizi/server/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logLevel  string
	logFormat string
	devMode   bool
)

// NewRootCmd creates the root command. Without a subcommand it serves HTTP.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asisten-gizi",
		Short: "Nutrition Q&A and diet program server",
		Long: `Asisten Gizi answers nutrition questions grounded in the WHO
document corpus and generates week-by-week Indonesian diet programs.

Running without a subcommand starts the HTTP server.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "json or console (overrides LOG_FORMAT)")
	cmd.PersistentFlags().BoolVar(&devMode, "dev", false, "development logging")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewProgramCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewTokenCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads configuration and applies the global flag overrides.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Development: devMode})
	if !cfg.EnvFileLoaded {
		log.Debug("no .env file found, using process environment")
	}
	return cfg, log, nil
}
