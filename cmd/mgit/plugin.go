package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPluginCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage plugins",
	}
	cmd.AddCommand(
		newPluginListCommand(v),
		newPluginEnableCommand(v),
		newPluginDisableCommand(v),
		newPluginReloadCommand(v),
		newPluginRefreshCommand(v),
	)
	return cmd
}

func newPluginRefreshCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Scan plugin directories for newly installed plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(v)
			if err != nil {
				return err
			}
			defer a.Shutdown()
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			n := a.Plugins().Refresh(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d new plugin(s) loaded.\n", n)
			return nil
		},
	}
}

func newPluginListCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded plugins by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(v)
			if err != nil {
				return err
			}
			defer a.Shutdown()
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}

			plugins := a.Plugins().List()
			if len(plugins) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plugins loaded.")
				return nil
			}

			bold := color.New(color.Bold)
			dim := color.New(color.Faint)
			byCategory := a.Plugins().PluginsByCategory()
			byID := make(map[string]string, len(plugins))
			for _, desc := range plugins {
				byID[desc.ID] = desc.String()
			}
			for category, ids := range byCategory {
				bold.Fprintln(cmd.OutOrStdout(), category)
				for _, id := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s ", byID[id])
					dim.Fprintf(cmd.OutOrStdout(), "(%s)\n", id)
				}
			}
			return nil
		},
	}
}

func newPluginEnableCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <plugin>",
		Short: "Enable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(v)
			if err != nil {
				return err
			}
			defer a.Shutdown()
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			if err := a.Plugins().EnablePlugin(args[0]); err != nil {
				return err
			}
			color.Green("Plugin %q enabled.", args[0])
			return nil
		},
	}
}

func newPluginDisableCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <plugin>",
		Short: "Disable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(v)
			if err != nil {
				return err
			}
			defer a.Shutdown()
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			if err := a.Plugins().DisablePlugin(args[0]); err != nil {
				return err
			}
			color.Yellow("Plugin %q disabled.", args[0])
			return nil
		},
	}
}

func newPluginReloadCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reload <plugin>",
		Short: "Reload a plugin from disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(v)
			if err != nil {
				return err
			}
			defer a.Shutdown()
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			if !a.Plugins().ReloadPlugin(cmd.Context(), args[0]) {
				return fmt.Errorf("plugin %q failed to load", args[0])
			}
			color.Green("Plugin %q reloaded.", args[0])
			return nil
		},
	}
}
