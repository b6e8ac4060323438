// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/boxedit/internal/config"
	"github.com/xkilldash9x/boxedit/internal/observability"
)

// app holds what the persistent pre-run resolves for subcommands.
type app struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
	// stderr is shared by the logger and replay readouts.
	stderr zapcore.WriteSyncer
}

// newRootCmd builds the command tree. Each call returns an independent tree,
// which keeps tests isolated.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:     "boxedit",
		Short:   "Drag-and-resize editing for percentage-positioned elements.",
		Version: Version,
		// Errors are reported once, by Execute's caller.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(v, a.cfgFile); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.SetLoggerLevel(a.logLevel)
			}
			a.cfg = cfg

			a.stderr = zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr()))
			observability.Initialize(cfg.Logger(), a.stderr)
			observability.GetLogger().Debug("Starting boxedit", zap.String("version", Version), zap.String("command", cmd.Name()))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newReplayCmd(a, defaultOpener), newConvertCmd(a), newVersionCmd())
	return rootCmd, a
}

// Execute runs the CLI with a signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd, _ := newRootCmd()
	defer observability.Sync()
	return rootCmd.ExecuteContext(ctx)
}

// initializeConfig points v at the config file and the BOXEDIT_ environment.
// A missing default config file is not an error; a missing explicit one is.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("expanding config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// expandPath resolves a leading ~ in a flag value.
func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	out, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", p, err)
	}
	return out, nil
}
