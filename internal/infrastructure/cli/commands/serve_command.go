package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/shai-ops/internal/app"
)

// NewServeCommand creates the serve command
func NewServeCommand(container *app.Container) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the log stream and history API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = container.Config.GetServerAddr()
			}
			return serve(cmd.Context(), cmd, container, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, container *app.Container, addr string) error {
	log := container.Logger.With("serve")

	if m := container.HistoryMaintainer; m != nil {
		days := container.Config.GetHistoryRetentionDays()
		if removed, err := m.PruneOlderThan(ctx, days); err != nil {
			log.Warn("history retention failed", map[string]interface{}{"error": err.Error()})
		} else if removed > 0 {
			log.Info("pruned old history", map[string]interface{}{"removed": removed, "days": days})
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           container.NewAPI().Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// open log streams end when the server is told to stop
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "SHAI API listening on http://%s\n", addr)
	log.Info("http api listening", map[string]interface{}{"addr": addr})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWindow)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
