package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mgit-app/mgit/internal/app"
)

// NewRootCommand builds the mgit command tree. Persistent flags are bound
// through viper so every flag can also come from an MGIT_* environment
// variable.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mgit",
		Short:         "Git-backed Markdown note manager",
		Long:          "MGit manages a folder of Markdown notes as a git repository,\nwith a Lua plugin system for extending editing, rendering, and commits.",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ~/.mgit/config.json)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("debug", false, "verbose console logging")
	flags.String("plugins-dir", "", "user plugin directory (default ~/.mgit/plugins)")
	flags.String("system-plugins-dir", "", "system plugin directory")
	flags.Bool("no-plugins", false, "start without loading plugins")

	v := viper.New()
	v.SetEnvPrefix("MGIT")
	v.AutomaticEnv()
	cobra.CheckErr(v.BindPFlags(flags))

	root.AddCommand(
		newPluginCommand(v),
		newStatusCommand(v),
		newCommitCommand(v),
		newRenderCommand(v),
		newRecentCommand(v),
	)
	return root
}

// buildApp constructs the application from bound flags. The caller owns
// shutdown.
func buildApp(v *viper.Viper) (*app.Application, error) {
	logger, err := app.NewLogger(v.GetString("log-level"), v.GetBool("debug"))
	if err != nil {
		return nil, err
	}
	return app.New(app.Options{
		ConfigPath:      v.GetString("config"),
		SystemPluginDir: v.GetString("system-plugins-dir"),
		UserPluginDir:   v.GetString("plugins-dir"),
		SkipPlugins:     v.GetBool("no-plugins"),
		Logger:          logger,
	})
}
