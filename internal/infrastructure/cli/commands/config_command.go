package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/shai-ops/internal/app"
	configapp "github.com/doeshing/shai-ops/internal/application/config"
	"github.com/doeshing/shai-ops/internal/infrastructure/cli/helpers"
)

// NewConfigCommand creates the config command with all subcommands
func NewConfigCommand(container *app.Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect SHAI configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd, container)
		},
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show full configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return showConfiguration(cmd, container)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), container.ConfigLoader.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Get a configuration value by dotted key (e.g. stream.retry_attempts)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return getConfigurationValue(cmd, container, args[0])
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a configuration value (value accepts YAML syntax)",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setConfigurationValue(cmd, container, args[0], strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate configuration file",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := container.ConfigLoader.Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("configuration validation failed: %w", err)
				}
				if err := configapp.Validate(cfg); err != nil {
					return fmt.Errorf("configuration validation failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset configuration to defaults (the old file is backed up)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return resetConfiguration(cmd.OutOrStdout(), container)
			},
		},
	)

	return configCmd
}

func showConfiguration(cmd *cobra.Command, container *app.Container) error {
	if container.ConfigLoader == nil {
		return fmt.Errorf(ErrConfigLoaderUnavailable)
	}
	cfg, err := container.ConfigLoader.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return writeYAML(cmd.OutOrStdout(), cfg)
}

func getConfigurationValue(cmd *cobra.Command, container *app.Container, key string) error {
	cfg, err := container.ConfigLoader.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	value, err := helpers.ConfigValue(cfg, key)
	if err != nil {
		return err
	}
	return writeYAML(cmd.OutOrStdout(), value)
}

func setConfigurationValue(cmd *cobra.Command, container *app.Container, key, value string) error {
	cfg, err := container.ConfigLoader.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	updated, err := helpers.SetConfigValue(cfg, key, value)
	if err != nil {
		return err
	}
	if err := helpers.SaveConfigWithValidation(container.ConfigLoader, updated); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", key)
	return nil
}

func resetConfiguration(out io.Writer, container *app.Container) error {
	backup, err := container.ConfigLoader.Backup()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to create configuration backup: %w", err)
	}
	if _, err := container.ConfigLoader.Reset(); err != nil {
		return fmt.Errorf("failed to reset configuration: %w", err)
	}
	if backup != "" {
		fmt.Fprintf(out, "Backup written to %s\n", backup)
	}
	fmt.Fprintln(out, "Configuration reset to defaults.")
	return nil
}

func writeYAML(out io.Writer, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Fprint(out, string(data))
	return nil
}
