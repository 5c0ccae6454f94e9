// Package commands provides the CLI commands for portfolio.
package commands

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"portfolio-assistant/internal/config"
	"portfolio-assistant/internal/logging"
)

// Version info (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

type globalFlags struct {
	envFile   string
	logLevel  string
	logFormat string
	logFile   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "portfolio",
		Short: "Portfolio site with a streaming chat assistant",
		Long: `portfolio serves a personal portfolio page whose chat assistant answers
questions about the owner, relaying them to an OpenAI-compatible provider.

Examples:
  portfolio serve                        Start the relay, page and Telegram bot
  portfolio chat                         Chat with a running relay in the terminal
  portfolio ask "What do you work on?"   Stream a single answer to stdout`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("portfolio {{.Version}} (built " + BuildTime + ")\n")

	pf := root.PersistentFlags()
	pf.StringVar(&flags.envFile, "env", ".env", "Path to a .env file")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format (console, json)")
	pf.StringVar(&flags.logFile, "log-file", "", "Also write logs to this file, rotated")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newChatCmd(flags))
	root.AddCommand(newAskCmd(flags))
	return root
}

// Execute runs the root command
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies flag overrides.
func (f *globalFlags) loadConfig() config.Config {
	cfg := config.Load(f.envFile)
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}
	if f.logFile != "" {
		cfg.LogFile = f.logFile
	}
	return cfg
}

func setupLogging(cfg config.Config, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	return logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}, stderr)
}
