package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const refreshTimeout = 2 * time.Minute

// StatsRefresher recomputes cached public statistics.
type StatsRefresher interface {
	Refresh(ctx context.Context) error
}

// StatsScheduler refreshes public statistics on a cron schedule.
type StatsScheduler struct {
	cron      *cron.Cron
	refresher StatsRefresher
	logger    *zap.Logger
}

// NewStatsScheduler validates spec and registers the refresh job. Nothing runs
// until Start.
func NewStatsScheduler(refresher StatsRefresher, spec string, logger *zap.Logger) (*StatsScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatsScheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		refresher: refresher,
		logger:    logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid stats refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the schedule in its own goroutine.
func (s *StatsScheduler) Start() {
	s.cron.Start()
	s.logger.Info("stats refresh scheduled", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for a running refresh or ctx, whichever
// finishes first.
func (s *StatsScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("stats refresh still running at shutdown")
	}
}

// RunOnce performs a single refresh.
func (s *StatsScheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	start := time.Now()
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Warn("stats refresh failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	s.logger.Info("stats refreshed", zap.Duration("elapsed", time.Since(start)))
	return nil
}
