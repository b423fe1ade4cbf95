package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/petmatch/internal/logger"
	"github.com/kailas-cloud/petmatch/internal/usecase/automatch"
)

func newSweepCmd() *cobra.Command {
	var opts automatch.Options
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one automatic matching sweep and print the summary as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.MaxDays < 0 || opts.MaxPets < 0 {
				return fmt.Errorf("--max-days and --max-pets must not be negative")
			}
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if l := a.sweepLease(); l != nil {
				release, ok, err := l.TryAcquire(ctx)
				if err != nil {
					return fmt.Errorf("acquire sweep lease: %w", err)
				}
				if !ok {
					return fmt.Errorf("another sweep is in progress")
				}
				defer func() {
					if err := release(context.WithoutCancel(ctx)); err != nil {
						a.logger.Warn("Failed to release sweep lease", zap.Error(err))
					}
				}()
			}

			summary, runErr := a.sweeper.Run(logpkg.ContextWithLogger(ctx, a.logger), opts)
			if summary != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return fmt.Errorf("write summary: %w", err)
				}
			}
			return runErr
		},
	}
	cmd.Flags().IntVar(&opts.MaxDays, "max-days", 0, "only consider pets reported within this many days (default from config)")
	cmd.Flags().IntVar(&opts.MaxPets, "max-pets", 0, "process at most this many pets (default from config)")
	return cmd
}
