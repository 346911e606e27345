package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/health"
	"github.com/opspulse/opspulse/internal/probe"
	"github.com/opspulse/opspulse/internal/repo"
)

// Sweeper probes the configured targets on a fixed interval and records
// the results, then refreshes today's uptime rollup. It replaces an
// external cron when one is not available; the POST health-check route
// stays the on-demand path.
type Sweeper struct {
	Logger   *zap.Logger
	Targets  []domain.ServiceTarget
	Runner   *probe.Runner
	Recorder *health.Recorder
	Health   repo.HealthStore
	Uptime   repo.UptimeStore
	Interval time.Duration

	now func() time.Time
}

func NewSweeper(
	logger *zap.Logger,
	targets []domain.ServiceTarget,
	runner *probe.Runner,
	recorder *health.Recorder,
	healthStore repo.HealthStore,
	uptimeStore repo.UptimeStore,
	interval time.Duration,
) *Sweeper {
	if interval < 0 {
		interval = 0
	}
	return &Sweeper{
		Logger:   logger,
		Targets:  targets,
		Runner:   runner,
		Recorder: recorder,
		Health:   healthStore,
		Uptime:   uptimeStore,
		Interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run starts the loop. It does an immediate pass, then runs each tick.
// Stops when ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval == 0 || len(s.Targets) == 0 {
		s.Logger.Info("sweeper_disabled")
		return
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("sweeper_stopped")
			return
		case <-t.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	results := s.Runner.Sweep(ctx, s.Targets)
	for _, res := range results {
		if err := s.Recorder.Record(ctx, res); err != nil {
			s.Logger.Warn("sweep_record_error",
				zap.String("service", res.Target.Name),
				zap.Error(err),
			)
		}
	}
	s.Logger.Debug("probe_sweep_done", zap.Int("targets", len(results)))
	s.rollup(ctx)
}

// rollup recomputes today's uptime percentage per target from the day's
// health records. A service with no record today is skipped; absence
// reads as 100 on the query side.
func (s *Sweeper) rollup(ctx context.Context) {
	dayStart := s.now().Truncate(24 * time.Hour)
	for _, tgt := range s.Targets {
		records, err := s.Health.Since(ctx, tgt.Name, dayStart)
		if err != nil {
			s.Logger.Warn("rollup_read_error", zap.String("service", tgt.Name), zap.Error(err))
			continue
		}
		if len(records) == 0 {
			continue
		}
		up := 0
		for _, r := range records {
			// degraded still means reachable
			if r.Status != domain.StatusUnhealthy {
				up++
			}
		}
		pct := float64(up) / float64(len(records)) * 100
		row := &domain.UptimeDailyRecord{
			ServiceName:   tgt.Name,
			Date:          dayStart,
			UptimePercent: &pct,
		}
		if err := s.Uptime.Upsert(ctx, row); err != nil {
			s.Logger.Warn("rollup_write_error", zap.String("service", tgt.Name), zap.Error(err))
		}
	}
}
