package commands

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"portfolio-assistant/internal/client"
	"portfolio-assistant/internal/config"
	"portfolio-assistant/internal/profile"
	"portfolio-assistant/internal/render"
	"portfolio-assistant/internal/tui"
)

type clientFlags struct {
	relayURL string
	theme    string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.relayURL, "relay-url", "", "Relay base URL (default from RELAY_URL)")
	cmd.Flags().StringVar(&f.theme, "theme", "", "Color theme: dark or light (default from THEME)")
}

func (f *clientFlags) apply(cfg *config.Config) {
	if f.relayURL != "" {
		cfg.RelayURL = f.relayURL
	}
	if f.theme != "" {
		cfg.Theme = f.theme
	}
}

func newChatCmd(global *globalFlags) *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long: `Start an interactive chat with a running relay.

Keys:
  enter    send the question
  tab      cycle through suggested questions
  ctrl+t   toggle dark/light theme
  ctrl+y   copy the last reply
  esc      quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := global.loadConfig()
			flags.apply(&cfg)

			// the alt screen owns the terminal; logs go to LOG_FILE only
			logger, closer, err := setupLogging(cfg, io.Discard)
			if err != nil {
				return err
			}
			defer closer.Close()

			transport := client.NewHTTPTransport(cfg.RelayURL, &http.Client{})
			p := relayProfile(cmd.Context(), transport, logger)
			return tui.Run(cmd.Context(), transport, p, render.ParseTheme(cfg.Theme))
		},
	}
	flags.register(cmd)
	return cmd
}

// relayProfile asks the relay for the profile it serves and falls back to
// the built-in one when the relay does not answer.
func relayProfile(ctx context.Context, transport *client.HTTPTransport, logger zerolog.Logger) profile.Profile {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := transport.Profile(ctx)
	if err == nil {
		return p
	}
	logger.Warn().Err(err).Msg("could not fetch profile from relay, using built-in profile")
	p, _ = profile.Default()
	return p
}
