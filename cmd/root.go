// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// appConfig holds the loaded configuration for subcommands.
var appConfig *config.Config

// NewRootCommand builds a fresh command tree. A new instance per execution
// keeps flag state from leaking between runs.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "formpilot",
		Short:        "formpilot drives a browser to fill job application forms under operator control.",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(cfgFile); err != nil {
				// Fall back to a bare logger so the error itself is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "formpilot"})
				return err
			}
			observability.InitializeLogger(appConfig.Logger)
			observability.GetLogger().Info("Starting formpilot.", zap.String("version", Version))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newApplyCommand())
	root.AddCommand(newPagesCommand())
	return root
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed.", zap.Error(err))
	}
	return err
}

// initializeConfig reads the config file and environment into appConfig.
func initializeConfig(cfgFile string) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FORMPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return err
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		// No config file; defaults and env vars apply.
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	appConfig = cfg
	return nil
}
