package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status [path]",
		Short: "Show the notes repository status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(v)
			if err != nil {
				return err
			}
			defer a.Shutdown()
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			if err := a.OpenRepository(cmd.Context(), repoPath(args)); err != nil {
				return err
			}

			status, err := a.Repository().Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "On branch %s\n", status.Branch)
			if !status.HasChanges() {
				fmt.Fprintln(out, "Working tree clean.")
				return nil
			}
			for _, fs := range status.Staged {
				color.New(color.FgGreen).Fprintf(out, "  staged:    %s\n", fs.Path)
			}
			for _, fs := range status.Unstaged {
				color.New(color.FgRed).Fprintf(out, "  modified:  %s\n", fs.Path)
			}
			for _, path := range status.Untracked {
				color.New(color.Faint).Fprintf(out, "  untracked: %s\n", path)
			}
			for _, path := range status.Conflicts {
				color.New(color.FgRed, color.Bold).Fprintf(out, "  conflict:  %s\n", path)
			}
			return nil
		},
	}
}

func newCommitCommand(v *viper.Viper) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:     "commit [path]",
		Aliases: []string{"save"},
		Short:   "Commit all pending note changes",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(v)
			if err != nil {
				return err
			}
			defer a.Shutdown()
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			if err := a.OpenRepository(cmd.Context(), repoPath(args)); err != nil {
				return err
			}
			if err := a.CommitAll(cmd.Context(), message); err != nil {
				return err
			}
			color.Green("Committed.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "Update notes", "commit message")
	return cmd
}

func newRenderCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "render <file>",
		Short: "Print a note after plugin render hooks",
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
			if _, err := a.OpenDocument(args[0]); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), a.RenderContent())
			return nil
		},
	}
}

func newRecentCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently opened repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(v)
			if err != nil {
				return err
			}
			defer a.Shutdown()
			for _, path := range a.Config().RecentRepositories() {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}

func repoPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
