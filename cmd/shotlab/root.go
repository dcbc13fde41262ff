package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/okian/shotlab/internal/config"
	"github.com/okian/shotlab/pkg/logger"
)

// commandContext loads configuration and the logger once per invocation.
type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	once   sync.Once
	config *config.Config
	err    error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig(ctx context.Context, cmd *cobra.Command) (*config.Config, error) {
	c.once.Do(func() {
		if c.configFlag != nil {
			if path := strings.TrimSpace(*c.configFlag); path != "" {
				if err := os.Setenv("SHOTLAB_CONFIG", path); err != nil {
					c.err = fmt.Errorf("set config path: %w", err)
					return
				}
			}
		}
		cfg, err := config.Load(ctx)
		if err != nil {
			c.err = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.LogLevel = *c.logLevelFlag
		}

		// Logs go to stderr so stdout stays clean for tables and JSON.
		if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
			c.err = err
			return
		}
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			logger.Get().Warn(ctx, "invalid log_level; falling back to info",
				logger.String("log_level", cfg.LogLevel), logger.Error(err))
			_ = logger.SetLevelString("info")
		}
		c.config = cfg
	})
	return c.config, c.err
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	cc := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "shotlab",
		Short:         "Basketball shooting form analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd == cmd.Root() {
				return nil
			}
			_, err := cc.ensureConfig(cmd.Context(), cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(cc))
	rootCmd.AddCommand(newAnalyzeCommand(cc))
	rootCmd.AddCommand(newShootersCommand(cc))

	return rootCmd
}
