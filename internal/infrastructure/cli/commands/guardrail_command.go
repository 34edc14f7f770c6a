package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/shai-ops/internal/app"
	"github.com/doeshing/shai-ops/internal/domain"
	configinfra "github.com/doeshing/shai-ops/internal/infrastructure/config"
	"github.com/doeshing/shai-ops/internal/infrastructure/cli/helpers"
)

// NewGuardrailCommand creates the guardrail command
func NewGuardrailCommand(container *app.Container) *cobra.Command {
	guardrailCmd := &cobra.Command{
		Use:   "guardrail",
		Short: "Inspect and toggle security guardrails",
	}

	guardrailCmd.AddCommand(
		&cobra.Command{
			Use:   "check <command>",
			Short: "Evaluate a command and show the confirmation it would need",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return checkCommand(cmd.OutOrStdout(), container, strings.Join(args, " "))
			},
		},
		&cobra.Command{
			Use:   "enable",
			Short: "Enable security guardrails",
			RunE: func(cmd *cobra.Command, args []string) error {
				return setGuardrailState(cmd.Context(), cmd.OutOrStdout(), container, true)
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable security guardrails (not recommended)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return setGuardrailState(cmd.Context(), cmd.OutOrStdout(), container, false)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show guardrail status",
			RunE: func(cmd *cobra.Command, args []string) error {
				return showGuardrailStatus(cmd.OutOrStdout(), container)
			},
		},
	)

	return guardrailCmd
}

func checkCommand(out io.Writer, container *app.Container, command string) error {
	if container.SecurityService == nil {
		fmt.Fprintln(out, "Guardrails are disabled; translator risk is used as is.")
		return nil
	}
	assessment, err := container.SecurityService.Evaluate(command)
	if err != nil {
		return fmt.Errorf("guardrail evaluation failed: %w", err)
	}
	policy := domain.PolicyFor(assessment.Level, false)
	fmt.Fprintf(out, "Risk: %s\nConfirmation: %s\n", strings.ToUpper(string(assessment.Level)), policy.Mode)
	for _, reason := range assessment.Reasons {
		fmt.Fprintf(out, " - %s\n", reason)
	}
	return nil
}

func setGuardrailState(ctx context.Context, out io.Writer, container *app.Container, enabled bool) error {
	cfg, err := container.ConfigLoader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Security.Enabled = enabled
	if err := helpers.SaveConfigWithValidation(container.ConfigLoader, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Guardrails %s.\n", stateLabel(enabled))
	return nil
}

func showGuardrailStatus(out io.Writer, container *app.Container) error {
	cfg := container.Config
	fmt.Fprintf(out, "Guardrails are currently %s.\n", stateLabel(cfg.IsSecurityEnabled()))
	if cfg.IsSecurityEnabled() {
		fmt.Fprintf(out, "Rules file: %s\n", configinfra.ExpandPath(cfg.Security.RulesFile))
	}
	return nil
}

func stateLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
