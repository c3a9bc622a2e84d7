package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"branch-ledger/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.ServerPort = port
			}

			logger := server.NewLogger(cfg)
			srv, err := server.NewServer(cfg, logger)
			if err != nil {
				return fmt.Errorf("starting server: %w", err)
			}
			if _, err := srv.Start(cfg.ServerPort); err != nil {
				srv.Stop(context.Background())
				return fmt.Errorf("starting server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port, overrides server_port")

	return cmd
}
