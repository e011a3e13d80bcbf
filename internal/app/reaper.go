package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultReapInterval = time.Second
	DefaultReapGrace    = 9500 * time.Millisecond
)

// Reaper periodically finishes duels whose second player stalled after the first one finished.
type Reaper struct {
	service  *DuelService
	duels    DuelRepository
	interval time.Duration
	grace    time.Duration
	logger   *zap.Logger
	cron     *cron.Cron
}

func NewReaper(service *DuelService, interval, grace time.Duration, logger *zap.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if grace <= 0 {
		grace = DefaultReapGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{
		service:  service,
		duels:    service.duels,
		interval: interval,
		grace:    grace,
		logger:   logger,
	}
}

// Start schedules the sweep every interval. Overlapping sweeps are skipped.
func (r *Reaper) Start() error {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(r.logger.Named("cron")))
	r.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		r.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}
	r.cron.Start()
	r.logger.Info("reaper started", zap.Duration("interval", r.interval), zap.Duration("grace", r.grace))
	return nil
}

// Stop halts scheduling; the returned context is done once a running sweep completes.
func (r *Reaper) Stop() context.Context {
	if r.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return r.cron.Stop()
}

// Sweep checks every active duel once and returns how many were finished.
// A failing duel is logged and skipped; it is retried on the next sweep.
func (r *Reaper) Sweep(ctx context.Context) int {
	ids, err := r.duels.ListActiveIDs(ctx)
	if err != nil {
		r.logger.Error("list active duels", zap.Error(err))
		return 0
	}

	reaped := 0
	for _, id := range ids {
		duelCtx, cancel := context.WithTimeout(ctx, r.interval)
		finished, err := r.service.ReapDuel(duelCtx, id, r.grace)
		cancel()
		if err != nil {
			r.logger.Warn("reap duel failed", zap.String("duelId", id), zap.Error(err))
			continue
		}
		if finished {
			reaped++
		}
	}
	if reaped > 0 {
		r.logger.Info("sweep finished stalled duels", zap.Int("count", reaped), zap.Int("active", len(ids)))
	}
	return reaped
}
