package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/shai-ops/internal/app"
	"github.com/doeshing/shai-ops/internal/application/history"
	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/infrastructure/cli/helpers"
)

const chatHelp = `Commands:
  /history   show the five most recent executions
  /clear     start a new session
  /quit      leave the chat
Anything else is translated into a shell command.`

func newChatCommand(container *app.Container, prompter *Prompter) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive session; recent turns are sent as translation context",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), cmd.OutOrStdout(), container, prompter)
		},
	}
}

func runChat(ctx context.Context, out io.Writer, container *app.Container, prompter *Prompter) error {
	fmt.Fprintf(out, "SHAI chat, session %s. Type /help for commands.\n", container.Pipeline.SessionID())
	for {
		line, err := helpers.ReadLine(out, prompter.Reader(), "\nshai> ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, chatHelp)
			continue
		case "/clear":
			id, err := container.Pipeline.Clear()
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Started session %s\n", id)
			continue
		case "/history":
			page, err := container.History.FetchPage(ctx, 1, 5, "")
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			helpers.RenderHistoryGroups(out, history.GroupByRecency(page.Items, time.Now()))
			continue
		}

		turn, err := container.Pipeline.SubmitIntent(ctx, line)
		settled, err := helpers.SettleTurn(ctx, out, container.Pipeline, prompter, turn, err)
		// notices were already rendered
		if err != nil && settled.Kind != domain.TurnSystemNotice {
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
}
