package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/rescue-console/internal/app"
	"github.com/dwizi/rescue-console/internal/config"
	"github.com/dwizi/rescue-console/internal/connectors/console"
)

func newConsoleCommand() *cobra.Command {
	var (
		identity string
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Type chat lines locally against the live board",
		Long:  "Runs the dispatcher and board without chat connectors or the HTTP API. Lines typed on stdin are handled as if sent to a channel; replies are printed to stdout.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if identity != "" {
				cfg.ConsoleIdentity = identity
			}
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			background := make(chan error, 1)
			go func() { background <- runtime.RunBackground(ctx) }()

			session := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.ConsoleIdentity, runtime.Dispatcher(), logger)
			sessionErr := session.Start(ctx)
			cancel()
			if err := <-background; err != nil && !errors.Is(err, context.Canceled) {
				return errors.Join(sessionErr, err)
			}
			return sessionErr
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "", "hostname the console user is matched as (default RESCUE_CONSOLE_CONSOLE_IDENTITY)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log dispatch details to stderr")
	return cmd
}
