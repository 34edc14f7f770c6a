package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/shai-ops/internal/app"
	"github.com/doeshing/shai-ops/internal/application/history"
	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/infrastructure/cli/helpers"
	"github.com/doeshing/shai-ops/internal/ports"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(container *app.Container, prompter ports.ConfirmationPrompter) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect, search and re-run past executions",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(container),
		newHistorySearchCommand(container),
		newHistoryDeleteCommand(container),
		newHistoryRerunCommand(container, prompter),
		newHistoryClearCommand(container),
		newHistoryExportCommand(container),
		newHistoryStatsCommand(container),
		newHistoryRetainCommand(container),
	)

	return historyCmd
}

func newHistoryListCommand(container *app.Container) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history grouped by day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHistory(cmd.Context(), cmd.OutOrStdout(), container, page, pageSize, "")
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Records per page (default from config)")
	return cmd
}

func newHistorySearchCommand(container *app.Container) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search intents and commands (case-insensitive)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHistory(cmd.Context(), cmd.OutOrStdout(), container, page, pageSize, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Records per page (default from config)")
	return cmd
}

func newHistoryDeleteCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one history record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.History.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newHistoryRerunCommand(container *app.Container, prompter ports.ConfirmationPrompter) *cobra.Command {
	return &cobra.Command{
		Use:   "rerun <id>",
		Short: "Run a recorded command again without translating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			rec, err := findRecord(ctx, container.History, args[0])
			if err != nil {
				return err
			}
			turn, err := container.History.ReExecute(ctx, rec)
			turn, err = helpers.SettleTurn(ctx, out, container.Pipeline, prompter, turn, err)
			if err != nil {
				return err
			}
			if turn.Outcome != nil && !turn.Outcome.Success {
				return fmt.Errorf("command exited with code %d", turn.Outcome.ExitCode)
			}
			return nil
		},
	}
}

func newHistoryClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.HistoryStore == nil {
				return fmt.Errorf(ErrHistoryStoreUnavailable)
			}
			if _, err := container.HistoryStore.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
}

func newHistoryExportCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export history to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.HistoryMaintainer == nil {
				return fmt.Errorf(ErrMaintenanceUnsupported)
			}
			if err := container.HistoryMaintainer.ExportJSON(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to export history to %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported history to %s\n", args[0])
			return nil
		},
	}
}

func newHistoryStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show success rate, top commands and risk distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := container.HistoryStore.Query(cmd.Context(), domain.HistoryQuery{Page: 1, PageSize: defaultStatsSample})
			if err != nil {
				return fmt.Errorf("failed to retrieve history for analysis: %w", err)
			}
			if len(page.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoHistoryRecorded)
				return nil
			}
			helpers.RenderHistoryStats(cmd.OutOrStdout(), helpers.AnalyzeHistory(page.Items), page.Items)
			return nil
		},
	}
}

func newHistoryRetainCommand(container *app.Container) *cobra.Command {
	var retainDays int

	cmd := &cobra.Command{
		Use:   "retain",
		Short: "Prune history older than N days and update the retention policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if retainDays <= 0 {
				return fmt.Errorf(ErrInvalidRetainDays)
			}
			return updateHistoryRetention(cmd.Context(), cmd.OutOrStdout(), container, retainDays)
		},
	}

	cmd.Flags().IntVar(&retainDays, "days", domain.DefaultHistoryRetainDays, "Days to retain history")
	return cmd
}

func listHistory(ctx context.Context, out io.Writer, container *app.Container, page, pageSize int, search string) error {
	view, err := container.History.FetchPage(ctx, page, pageSize, search)
	if err != nil {
		return err
	}
	if len(view.Items) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}
	helpers.RenderHistoryGroups(out, history.GroupByRecency(view.Items, time.Now()))
	if container.History.HasMore() {
		fmt.Fprintf(out, "\nShowing %d of %d. Use --page %d for more.\n", len(view.Items), view.Total, view.Page+1)
	}
	return nil
}

// findRecord pages through history until id is on screen.
func findRecord(ctx context.Context, engine *history.Engine, id string) (domain.HistoryRecord, error) {
	if _, err := engine.FetchPage(ctx, 1, domain.MaxHistoryPageSize, ""); err != nil {
		return domain.HistoryRecord{}, err
	}
	for {
		if engine.Select(id) {
			rec, _ := engine.Selected()
			return rec, nil
		}
		if !engine.HasMore() {
			return domain.HistoryRecord{}, domain.NewError(domain.KindNotFound, "find history", domain.ErrHistoryNotFound)
		}
		if _, err := engine.LoadMore(ctx); err != nil {
			return domain.HistoryRecord{}, err
		}
	}
}

func updateHistoryRetention(ctx context.Context, out io.Writer, container *app.Container, days int) error {
	if container.HistoryMaintainer == nil {
		return fmt.Errorf(ErrMaintenanceUnsupported)
	}
	removed, err := container.HistoryMaintainer.PruneOlderThan(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to prune old history: %w", err)
	}

	cfg, err := container.ConfigLoader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.History.RetentionDays = days
	if err := helpers.SaveConfigWithValidation(container.ConfigLoader, cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "Removed %d records; retaining the last %d days of history.\n", removed, days)
	return nil
}
