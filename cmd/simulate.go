package main

import (
	"os/signal"
	"syscall"

	"github.com/okian/stagedrops/internal/simulate"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cfg := simulate.Config{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play rounds against a running session and print the outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rep, err := simulate.Run(ctx, cfg)
			if err != nil {
				return err
			}
			cmd.Printf("events sent:        %d\n", rep.EventsSent)
			cmd.Printf("events refused:     %d\n", rep.EventsRefused)
			cmd.Printf("processed:          %d\n", rep.Processed)
			cmd.Printf("drops updated:      %d\n", rep.DropsUpdated)
			cmd.Printf("recognition errors: %d\n", rep.RecognitionErr)
			cmd.Printf("invalid stages:     %d\n", rep.StageInvalid)
			cmd.Printf("halted:             %t\n", rep.Halted)
			for _, t := range rep.Totals {
				cmd.Printf("  %-10s %-24s %d\n", t.ItemID, t.ItemName, t.Quantity)
			}
			cmd.Printf("took:               %s\n", rep.Duration)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the session API")
	f.IntVar(&cfg.Rounds, "rounds", simulate.DefaultRounds, "normal rounds to play")
	f.IntVar(&cfg.Annihilations, "annihilations", 0, "annihilation rounds to play after the normal ones")
	f.BoolVar(&cfg.Duplicates, "duplicates", false, "send a second normal end per round")
	f.DurationVar(&cfg.Timeout, "timeout", simulate.DefaultTimeout, "per-request timeout")
	f.DurationVar(&cfg.RoundTimeout, "round-timeout", simulate.DefaultRoundTimeout, "wait limit for one round to be processed")
	return cmd
}
