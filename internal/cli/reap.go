package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/config"
)

// NewReapCmd runs one timeout sweep against the shared store, e.g. from an external scheduler.
func NewReapCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Finish stalled duels once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReap(cmd.Context(), *configPath)
		},
	}
}

func runReap(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Backend() != config.BackendRedis {
		return fmt.Errorf("reap needs a shared store; set store.backend to %q", config.BackendRedis)
	}
	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	deps, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	reaper := app.NewReaper(deps.service,
		config.TTLDuration(cfg.Reaper.Interval, app.DefaultReapInterval),
		config.TTLDuration(cfg.Reaper.Grace, app.DefaultReapGrace),
		logger.Named("reaper"))
	reaped := reaper.Sweep(ctx)
	logger.Info("reap finished", zap.Int("finished", reaped))
	return nil
}
