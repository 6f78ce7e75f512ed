// Package cli wires configuration, logging, and the command tree together.
// Commands load config themselves in RunE so that `version` and `--help`
// never touch the filesystem.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/observability"
)

// fatalRuntime marks failures of a session that was already up and running,
// as opposed to configuration and startup problems. The process exits 2 for
// these and 1 for everything else.
type fatalRuntime struct{ err error }

func (e fatalRuntime) Error() string { return e.err.Error() }

func (e fatalRuntime) Unwrap() error { return e.err }

// NewRootCommand builds the command tree. A fresh tree per invocation keeps
// flag state out of tests.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:   "genshinbot",
		Short: "Screen-reading automation for the Genshin Impact client",
		Long: `genshinbot watches the game client through screen or browser capture,
reads health and on-screen prompts with template matching and OCR, and
answers with synthetic keyboard and mouse input.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./config.yaml)")
	root.AddCommand(newRunCmd(&cfgFile), newProbeCmd(&cfgFile), newVersionCmd())
	return root
}

// Execute runs the command tree and maps the outcome to a process exit code.
func Execute(ctx context.Context) int {
	err := NewRootCommand().ExecuteContext(ctx)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	default:
		fmt.Fprintln(os.Stderr, "genshinbot:", err)
		observability.L().Error("command failed", zap.Error(err))
		var rt fatalRuntime
		if errors.As(err, &rt) {
			return 2
		}
		return 1
	}
}

// loadConfig resolves the configuration: defaults, then the config file if
// one exists, then GENSHINBOT_* environment variables. A missing config file
// is fine; a broken or invalid one is not.
func loadConfig(cfgFile string) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("GENSHINBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
