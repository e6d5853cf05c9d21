package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	billingapp "github.com/bizdash/backend/internal/application/billing"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
	ErrInvalidConfig       = errors.New("invalid scheduler configuration")
)

// UsageExportRunner exports one month of usage for every linked subscriber
type UsageExportRunner interface {
	ExportAllUsage(ctx context.Context, month string) (*billingapp.UsageExportRunResponse, error)
}

// UsageExportSchedulerConfig holds configuration for the usage export scheduler
type UsageExportSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Schedule is a standard five-field cron expression
	Schedule string

	// CloseOutDays re-exports the previous month during the first days of a
	// new month so late events still reach the closed invoice
	CloseOutDays int

	// RunTimeout is the maximum time for one run
	RunTimeout time.Duration

	// Location is the billing timezone months and the schedule are evaluated in
	Location *time.Location
}

// DefaultUsageExportSchedulerConfig returns default configuration
func DefaultUsageExportSchedulerConfig() UsageExportSchedulerConfig {
	return UsageExportSchedulerConfig{
		Enabled:      true,
		Schedule:     "0 2 * * *",
		CloseOutDays: 3,
		RunTimeout:   30 * time.Minute,
		Location:     time.UTC,
	}
}

// UsageExportScheduler pushes usage totals to the billing provider on a cron schedule
type UsageExportScheduler struct {
	runner   UsageExportRunner
	logger   *zap.Logger
	config   UsageExportSchedulerConfig
	schedule cron.Schedule
	cron     *cron.Cron
	now      func() time.Time

	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRunAt *time.Time
}

// NewUsageExportScheduler creates a new usage export scheduler
func NewUsageExportScheduler(runner UsageExportRunner, logger *zap.Logger, config UsageExportSchedulerConfig) (*UsageExportScheduler, error) {
	schedule, err := cron.ParseStandard(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, config.Schedule, err)
	}
	if config.CloseOutDays < 0 || config.CloseOutDays > 28 {
		return nil, fmt.Errorf("%w: close out days must be 0-28, got %d", ErrInvalidConfig, config.CloseOutDays)
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 30 * time.Minute
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &UsageExportScheduler{
		runner:   runner,
		logger:   logger,
		config:   config,
		schedule: schedule,
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		now: time.Now,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.scheduledRun))
	return s, nil
}

// Start starts the cron loop
func (s *UsageExportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Usage export scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()

	s.logger.Info("Usage export scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.Time("next_run", s.nextRunTime(s.now())),
		zap.Int("close_out_days", s.config.CloseOutDays))
	return nil
}

// Stop cancels in-flight runs and waits for them to finish
func (s *UsageExportScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Usage export scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Usage export scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerImmediateExport starts a run outside the schedule
func (s *UsageExportScheduler) TriggerImmediateExport(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate usage export")
	go func() {
		defer s.wg.Done()
		s.executeExport(ctx, "manual")
	}()
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *UsageExportScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// LastRunAt returns when the last run started, nil before the first run
func (s *UsageExportScheduler) LastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}

func (s *UsageExportScheduler) scheduledRun() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	s.executeExport(ctx, "scheduled")
}

// nextRunTime returns the next scheduled run strictly after now
func (s *UsageExportScheduler) nextRunTime(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.config.Location))
}

// monthsToExport returns the current month and, during the close-out window,
// the previous one, oldest first
func (s *UsageExportScheduler) monthsToExport(now time.Time) []string {
	local := now.In(s.config.Location)
	current := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.config.Location)
	months := make([]string, 0, 2)
	if local.Day() <= s.config.CloseOutDays {
		months = append(months, current.AddDate(0, -1, 0).Format("2006-01"))
	}
	return append(months, current.Format("2006-01"))
}

func (s *UsageExportScheduler) executeExport(ctx context.Context, trigger string) {
	start := s.now()
	s.mu.Lock()
	s.lastRunAt = &start
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	for _, month := range s.monthsToExport(start) {
		run, err := s.runner.ExportAllUsage(runCtx, month)
		if err != nil {
			s.logger.Error("Usage export run failed",
				zap.String("trigger", trigger),
				zap.String("month", month),
				zap.Error(err))
			continue
		}
		s.logger.Info("Usage export run completed",
			zap.String("trigger", trigger),
			zap.String("month", month),
			zap.Int("attempted", run.Attempted),
			zap.Int("failed", run.Failed),
			zap.Duration("duration", time.Since(start)))
	}
}
