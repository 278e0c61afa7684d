package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/rescue-console/internal/app"
	"github.com/dwizi/rescue-console/internal/config"
	"github.com/dwizi/rescue-console/internal/tui"
)

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "rescue-console",
		Short:         "rescue-console coordinates rescues from chat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newConsoleCommand())
	root.AddCommand(newFactsCommand())
	root.AddCommand(newBoardCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run chat connectors, the case service session and the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newBoardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Watch the rescue board of a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The dashboard owns the terminal; log output would tear the screen.
			return tui.Run(config.FromEnv(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(app.Version)
		},
	}
}
