package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/shai-ops/internal/app"
	"github.com/doeshing/shai-ops/internal/application/logstream"
	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/infrastructure/cli/helpers"
)

type tailOptions struct {
	level  string
	search string
	remote string
	local  bool
	lines  int
	follow bool
}

// NewLogsCommand creates the logs command
func NewLogsCommand(container *app.Container) *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Watch structured logs from a SHAI server",
	}

	var opts tailOptions
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print recent log records and optionally follow the live stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tailLogs(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), container, opts)
		},
	}
	tailCmd.Flags().StringVar(&opts.level, "level", "ALL", "Exact level to show (ALL, DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	tailCmd.Flags().StringVar(&opts.search, "search", "", "Case-insensitive text to match in message or source")
	tailCmd.Flags().StringVar(&opts.remote, "remote", "", "Server base URL (default stream.endpoint, then server.addr)")
	tailCmd.Flags().BoolVar(&opts.local, "local", false, "Read this process's own log hub")
	tailCmd.Flags().IntVarP(&opts.lines, "lines", "n", DefaultLogLines, "Records to print from the backlog")
	tailCmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Keep streaming until interrupted")

	logsCmd.AddCommand(tailCmd)
	return logsCmd
}

func tailLogs(ctx context.Context, out, errOut io.Writer, container *app.Container, opts tailOptions) error {
	level := domain.ParseLogLevel(opts.level)
	manager, err := container.NewLogManager(resolveRemote(container.Config, opts))
	if err != nil {
		return err
	}
	manager.OnStatusChange(func(s logstream.Status) {
		switch s.State {
		case domain.StreamRetrying:
			fmt.Fprintf(errOut, "[stream] %s (attempt %d)\n", s.State, s.Attempt)
		case domain.StreamDisconnected:
			if s.LastError != nil {
				fmt.Fprintf(errOut, "[stream] %s: %v\n", s.State, s.LastError)
			}
		default:
			fmt.Fprintf(errOut, "[stream] %s\n", s.State)
		}
	})

	if err := manager.UpdateFilter(ctx, level); err != nil {
		return err
	}
	if _, err := manager.Backfill(ctx, container.Config.GetBackfillLimit()); err != nil {
		fmt.Fprintf(errOut, "[stream] backfill failed: %v\n", err)
	}

	records, seq := manager.Since(0)
	backlog := logstream.ComputeView(records, level, opts.search)
	if opts.lines > 0 && len(backlog) > opts.lines {
		backlog = backlog[:opts.lines]
	}
	printOldestFirst(out, backlog)
	if !opts.follow {
		if len(backlog) == 0 {
			fmt.Fprintln(out, MsgNoLogRecords)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if err := manager.Connect(ctx, level); err != nil {
		return err
	}
	defer manager.Disconnect()

	ticker := time.NewTicker(logPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		seq = printSince(out, manager, seq, level, opts.search)

		st := manager.Status()
		if st.State == domain.StreamDisconnected && st.LastError != nil {
			return fmt.Errorf("log stream lost: %w", st.LastError)
		}
	}
}

// printSince prints the records that reached the manager after seq and match
// the filters, in arrival order, and returns the new arrival count.
func printSince(out io.Writer, manager *logstream.Manager, seq uint64, level domain.LogLevel, search string) uint64 {
	records, next := manager.Since(seq)
	printOldestFirst(out, logstream.ComputeView(records, level, search))
	return next
}

// printOldestFirst renders a newest-first view in reverse.
func printOldestFirst(out io.Writer, view []domain.LogRecord) {
	for i := len(view) - 1; i >= 0; i-- {
		helpers.RenderLogRecord(out, view[i])
	}
}

func resolveRemote(cfg domain.Config, opts tailOptions) string {
	if opts.local {
		return ""
	}
	if opts.remote != "" {
		return opts.remote
	}
	if cfg.Stream.Endpoint != "" {
		return cfg.Stream.Endpoint
	}
	return "http://" + cfg.GetServerAddr()
}
