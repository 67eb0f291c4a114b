package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/service"
)

// SweepRunner runs sweeps and daily reports.
type SweepRunner interface {
	Run(ctx context.Context) (*domain.SweepReport, error)
	RunDailyReportAt(ctx context.Context, now time.Time) (*domain.DailyReport, error)
}

// SchedulerConfig controls the two timers.
type SchedulerConfig struct {
	Interval     time.Duration
	DailyCron    string
	SweepOnStart bool
}

// Scheduler drives the periodic sweep and the daily report.
type Scheduler struct {
	runner SweepRunner
	cfg    SchedulerConfig
	logger *zap.Logger
	clock  func() time.Time
	cron   *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler validates the cron expression and builds a stopped scheduler.
func NewScheduler(runner SweepRunner, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.DailyCron == "" {
		cfg.DailyCron = "0 0 * * *"
	}
	s := &Scheduler{
		runner: runner,
		cfg:    cfg,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
		ctx:    context.Background(),
	}

	cronLogger := zapCronLogger{logger: logger.Sugar()}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := s.cron.AddFunc(cfg.DailyCron, s.runDaily); err != nil {
		return nil, fmt.Errorf("invalid daily report schedule %q: %w", cfg.DailyCron, err)
	}
	return s, nil
}

// Start launches the sweep loop and the cron scheduler. Both stop with ctx or Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(runCtx)
	}()
	s.cron.Start()
	s.logger.Info("sla scheduler started",
		zap.Duration("sweep_interval", s.cfg.Interval),
		zap.String("daily_cron", s.cfg.DailyCron),
		zap.Bool("sweep_on_start", s.cfg.SweepOnStart))
}

// Stop cancels the timers and waits for in-flight jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("sla scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	if s.cfg.SweepOnStart {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if _, err := s.runner.Run(ctx); err != nil && !errors.Is(err, service.ErrSweepInProgress) {
		s.logger.Error("scheduled sla sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) runDaily() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.runner.RunDailyReportAt(ctx, s.clock()); err != nil {
		s.logger.Error("scheduled sla daily report failed", zap.Error(err))
	}
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
