package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/shai-ops/internal/app"
	"github.com/doeshing/shai-ops/internal/infrastructure/cli/commands"
	"github.com/doeshing/shai-ops/internal/infrastructure/cli/helpers"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
	// In and Out replace stdin and stdout, mainly for tests.
	In  io.Reader
	Out io.Writer
}

// NewRootCmd wires the cobra root command. The returned closer releases the
// history store and log hub.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, io.Closer, error) {
	container, err := app.BuildContainer(ctx, app.Options{Verbose: opts.Verbose, ConfigPath: opts.ConfigPath})
	if err != nil {
		return nil, nil, err
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	prompter := NewPrompter(opts.In, out)

	askCmd := newAskCommand(container, prompter)

	root := &cobra.Command{
		Use:   "shai [intent]",
		Short: "SHAI - Shell AI assistant",
		Long:  "SHAI turns natural language into shell commands, gates them by risk, and keeps an auditable history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runAsk(cmd.Context(), cmd.OutOrStdout(), container, prompter, args, 0)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(askCmd)
	root.AddCommand(newChatCommand(container, prompter))
	root.AddCommand(commands.NewHistoryCommand(container, prompter))
	root.AddCommand(commands.NewLogsCommand(container))
	root.AddCommand(commands.NewServeCommand(container))
	root.AddCommand(commands.NewDoctorCommand(container))
	root.AddCommand(commands.NewGuardrailCommand(container))
	root.AddCommand(commands.NewConfigCommand(container))
	root.AddCommand(commands.NewVersionCommand())
	return root, closerFunc(container.Close), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newAskCommand(container *app.Container, prompter *Prompter) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ask [natural language]",
		Short: "Translate an intent into a command and run it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd.OutOrStdout(), container, prompter, args, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall deadline for translation and execution")
	return cmd
}

func runAsk(ctx context.Context, out io.Writer, container *app.Container, prompter *Prompter, args []string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	spinner := NewSpinner(out)
	spinner.Start("Translating...")
	turn, err := container.Pipeline.SubmitIntent(ctx, strings.Join(args, " "))
	spinner.Stop()

	turn, err = helpers.SettleTurn(ctx, out, container.Pipeline, prompter, turn, err)
	if err != nil {
		return err
	}
	if turn.Outcome != nil && !turn.Outcome.Success {
		return fmt.Errorf("command exited with code %d", turn.Outcome.ExitCode)
	}
	return nil
}
