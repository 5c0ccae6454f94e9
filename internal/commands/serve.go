package commands

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"portfolio-assistant/internal/adapter/openai"
	"portfolio-assistant/internal/adapter/telegram"
	"portfolio-assistant/internal/adapter/web"
	"portfolio-assistant/internal/config"
	"portfolio-assistant/internal/profile"
	"portfolio-assistant/internal/telemetry"
	"portfolio-assistant/internal/tokens"
	"portfolio-assistant/internal/usecase/chat"
)

const (
	serviceName         = "portfolio-assistant"
	encodingLoadTimeout = 10 * time.Second
)

type serveFlags struct {
	addr        string
	profilePath string
	model       string
	maxTokens   int
	noTelegram  bool
}

func newServeCmd(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat relay, the portfolio page and the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := global.loadConfig()
			flags.apply(cmd, &cfg)
			return runServe(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
	flags.register(cmd)
	return cmd
}

func (f *serveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", "", "Listen address (default from LISTEN_ADDR)")
	cmd.Flags().StringVar(&f.profilePath, "profile", "", "Profile YAML (default: built-in profile)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Provider model")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "Cap on streamed reply tokens")
	cmd.Flags().BoolVar(&f.noTelegram, "no-telegram", false, "Do not start the Telegram bot")
}

func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if f.addr != "" {
		cfg.ListenAddr = f.addr
	}
	if f.profilePath != "" {
		cfg.ProfilePath = f.profilePath
	}
	if f.model != "" {
		cfg.Model = f.model
	}
	if cmd.Flags().Changed("max-tokens") {
		cfg.MaxOutputTokens = f.maxTokens
	}
	if f.noTelegram {
		cfg.TelegramToken = ""
	}
}

func runServe(parent context.Context, cfg config.Config, stderr io.Writer) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	logger, closer, err := setupLogging(cfg, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, serviceName, Version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	p, err := loadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}

	svc := newRelay(ctx, cfg, p, logger)

	srv, err := web.NewServer(svc, p, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, cfg.ListenAddr) })

	if cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(cfg, svc, p, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return bot.Run(gctx) })
	} else {
		logger.Info().Msg("telegram bot disabled")
	}

	logger.Info().
		Str("model", cfg.Model).
		Int("max_tokens", cfg.MaxOutputTokens).
		Str("profile", p.Name).
		Msg("relay started")

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		logger.Info().Msg("shutdown complete")
		return nil
	}
	return err
}

func loadProfile(path string) (profile.Profile, error) {
	if path == "" {
		return profile.Default()
	}
	return profile.Load(path)
}

// newRelay wires the provider, the token counter and the system prompt.
func newRelay(ctx context.Context, cfg config.Config, p profile.Profile, logger zerolog.Logger) *chat.Service {
	loadCtx, cancel := context.WithTimeout(ctx, encodingLoadTimeout)
	defer cancel()
	counter, err := tokens.New(loadCtx, cfg.TokenEncoding)
	if err != nil {
		logger.Warn().Err(err).Str("encoding", cfg.TokenEncoding).Msg("token encoding unavailable, counting runes")
	}

	provider := openai.NewClient(cfg.OpenAIKey, openai.WithBaseURL(cfg.OpenAIBaseURL))
	return chat.NewService(provider, p.SystemPrompt, chat.Options{
		Model:           cfg.Model,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Counter:         counter,
	})
}
