package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/rawrecord/cmd/config"
	"github.com/tphakala/rawrecord/cmd/devices"
	"github.com/tphakala/rawrecord/cmd/inspect"
	"github.com/tphakala/rawrecord/cmd/record"
	"github.com/tphakala/rawrecord/cmd/version"
	"github.com/tphakala/rawrecord/internal/buildinfo"
	"github.com/tphakala/rawrecord/internal/conf"
	"github.com/tphakala/rawrecord/internal/logger"
)

// skipSetupAnnotation marks commands that run without loading configuration.
const skipSetupAnnotation = "rawrecord/skip-setup"

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           conf.AppName,
		Short:         "Record raw audio to disk",
		Long:          "rawrecord captures audio from an input device into headerless float64 files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.GetVersion(),
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	versionCmd := version.Command(build)
	versionCmd.Annotations = map[string]string{skipSetupAnnotation: "true"}

	rootCmd.AddCommand(
		record.Command(),
		devices.Command(),
		inspect.Command(),
		configcmd.Command(),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipSetupAnnotation] == "true" {
			return nil
		}
		return initialize(configFile)
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipSetupAnnotation] == "true" {
			return nil
		}
		return logger.Global().Close()
	}

	return rootCmd
}

// initialize loads the configuration and installs the global logger.
func initialize(configFile string) error {
	settings, err := conf.Load(configFile)
	if err != nil {
		return err
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(cl)

	if used := conf.ConfigFileUsed(); used != "" {
		cl.Module("cli").Debug("configuration loaded", logger.String("config_file", used))
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Config file (default ./config.yaml or ~/.config/rawrecord/config.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
