package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	maa "github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/okian/stagedrops/internal/adapters/maahost"
	service "github.com/okian/stagedrops/internal/app"
	"github.com/okian/stagedrops/internal/config"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/spf13/cobra"
)

// ErrAgentStartup is returned when the agent server refuses to start.
var ErrAgentStartup = errors.New("agent server startup failed")

func newAgentCmd(c *cli) *cobra.Command {
	var libDir string
	cmd := &cobra.Command{
		Use:   "agent <identifier>",
		Short: "Run a session as an MAA agent server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), c.cfg, args[0], libDir)
		},
	}
	cmd.Flags().StringVar(&libDir, "lib-dir", "", "directory holding the MAA libraries (default ./maafw)")
	return cmd
}

func runAgent(ctx context.Context, cfg *config.Config, identifier, libDir string) error {
	log := logger.Get()
	log.Info(ctx, "stage drops agent", logger.String("version", Version), logger.String("identifier", identifier))

	if libDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		libDir = filepath.Join(cwd, "maafw")
	}
	log.Info(ctx, "initializing MAA framework", logger.String("libDir", libDir))
	if err := maa.Init(maa.WithLibDir(libDir)); err != nil {
		return fmt.Errorf("init MAA framework: %w", err)
	}

	opts, err := sessionOptions(ctx, cfg, log)
	if err != nil {
		return err
	}
	bridge := maahost.New(maahost.WithLogger(log.Named("maahost")))
	opts = append(opts, service.WithFrameSource(bridge), service.WithControl(bridge))

	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer svc.Stop()
	bridge.Attach(svc)

	if err := maahost.Register(bridge); err != nil {
		return fmt.Errorf("register round recognitions: %w", err)
	}
	log.Info(ctx, "registered round recognitions and actions")

	if err := maa.AgentServerStartUp(identifier); err != nil {
		return fmt.Errorf("%w: %v", ErrAgentStartup, err)
	}
	log.Info(ctx, "agent server started")

	maa.AgentServerJoin()
	maa.AgentServerShutDown()
	log.Info(ctx, "agent server shutdown")
	return nil
}
