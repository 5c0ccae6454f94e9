package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"portfolio-assistant/internal/client"
	"portfolio-assistant/internal/config"
	"portfolio-assistant/internal/render"
)

type askFlags struct {
	clientFlags
	render bool
	local  bool
}

func newAskCmd(global *globalFlags) *cobra.Command {
	flags := &askFlags{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Stream a single answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := global.loadConfig()
			flags.apply(&cfg)

			logger, closer, err := setupLogging(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var transport client.Transport
			if flags.local {
				if err := cfg.ValidateServer(); err != nil {
					return err
				}
				p, err := loadProfile(cfg.ProfilePath)
				if err != nil {
					return err
				}
				transport = client.LocalTransport{Relay: newRelay(ctx, cfg, p, logger)}
			} else {
				transport = client.NewHTTPTransport(cfg.RelayURL, &http.Client{})
			}

			return ask(ctx, transport, strings.Join(args, " "), cmd.OutOrStdout(), flags.renderOptions(cfg))
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&flags.render, "render", "r", false, "Render the finished reply as markdown instead of streaming raw text")
	cmd.Flags().BoolVar(&flags.local, "local", false, "Call the provider in-process instead of a relay")
	return cmd
}

func (f *askFlags) renderOptions(cfg config.Config) *render.Options {
	if !f.render {
		return nil
	}
	opts := render.DefaultOptions().WithTheme(render.ParseTheme(cfg.Theme))
	return &opts
}

// ask submits one question. Without render options, chunks are written to
// out as they arrive; otherwise the finished reply is rendered once.
func ask(ctx context.Context, transport client.Transport, question string, out io.Writer, opts *render.Options) error {
	written := 0
	var c *client.Client
	c = client.New(transport, client.WithOnChange(func() {
		if opts != nil {
			return
		}
		reply, ok := c.LastReply()
		if !ok || len(reply) <= written {
			return
		}
		_, _ = io.WriteString(out, reply[written:])
		written = len(reply)
	}))

	err := c.Submit(ctx, question)
	if errors.Is(err, client.ErrEmptyInput) {
		return errors.New("question must not be empty")
	}

	reply, ok := c.LastReply()
	switch {
	case opts != nil && ok:
		fmt.Fprintln(out, render.Terminal(reply, *opts))
	case written > 0:
		fmt.Fprintln(out)
	}
	return err
}
