// Package cmd assembles the drawpad command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/drawpad/cmd/create"
	"github.com/tphakala/drawpad/cmd/edit"
	"github.com/tphakala/drawpad/cmd/ls"
	"github.com/tphakala/drawpad/cmd/serve"
	"github.com/tphakala/drawpad/cmd/version"
	"github.com/tphakala/drawpad/internal/buildinfo"
	"github.com/tphakala/drawpad/internal/conf"
	"github.com/tphakala/drawpad/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}

	rootCmd := &cobra.Command{
		Use:           "drawpad",
		Short:         "Sandboxed drawing store and autosaving editor client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	versionCmd := version.Command(info)
	subcommands := []*cobra.Command{
		serve.Command(settings, info),
		ls.Command(settings, info),
		create.Command(settings, info),
		edit.Command(settings, info),
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for the version command
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings)
	}

	return rootCmd
}

// initialize loads configuration (flags take precedence through viper) and
// installs the global logger.
func initialize(settings *conf.Settings) error {
	loaded, err := conf.Load()
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) error {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().String("server", conf.DefaultServerURL, "Store server URL used by client commands")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("client.serverurl", rootCmd.PersistentFlags().Lookup("server")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
