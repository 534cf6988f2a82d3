package main

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/stagedrops/internal/config"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// cli holds what PersistentPreRunE prepared for the subcommands.
type cli struct {
	cfg     *config.Config
	logFile io.Closer
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "stagedrops",
		Short:         "Recognize, tally and report stage drops for an automation session",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logFile != nil {
				_ = c.logFile.Close()
			}
		},
	}

	root.PersistentFlags().String("config", "", "path to a YAML config file (overrides "+config.EnvConfig+")")
	root.AddCommand(newServeCmd(c), newAgentCmd(c), newSimulateCmd())
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	// Our own registry carries the session metrics; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv(config.EnvConfig, path); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	if cfg.LogFile != "" {
		closer, err := logger.InitFile(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("init file logging: %w", err)
		}
		c.logFile = closer
	} else if err := logger.Init(); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}
