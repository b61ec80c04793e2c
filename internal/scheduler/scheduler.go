package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weatherservice/internal/config"
	"github.com/i474232898/weatherservice/internal/logging"
	"github.com/i474232898/weatherservice/internal/weather"
)

// Collector is the work the scheduler runs; *weather.Service satisfies it.
type Collector interface {
	CollectAndStore(ctx context.Context) (weather.CollectionResult, error)
}

// Scheduler periodically fetches the weather feed and stores it.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector Collector
	cfg       config.Scheduling
	timeout   time.Duration
	logger    *slog.Logger

	// serializes RunOnce with scheduled runs
	mu sync.Mutex
}

// New creates a new Scheduler. timeout bounds a single run.
func New(cfg config.Scheduling, collector Collector, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		collector: collector,
		cfg:       cfg.Normalize(),
		timeout:   timeout,
		logger:    logging.Component(logger, "scheduler"),
	}
}

// RunOnce fetches and stores the feed immediately. Failures are logged.
func (s *Scheduler) RunOnce(ctx context.Context) (weather.CollectionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Info("running weather collection job")
	res, err := s.collector.CollectAndStore(ctx)
	if err != nil {
		s.logger.Error("weather collection failed", "error", err)
		return res, err
	}
	s.logger.Info("completed weather collection job", "total", res.Total, "valid", res.Valid)
	return res, nil
}

// Start schedules the cron job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	expr := s.cfg.CronExpression()
	job, err := s.scheduler.Cron(expr).SingletonMode().Do(func() {
		_, _ = s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()

	next := job.NextRun()
	if runs, err := s.cfg.NextRuns(time.Now().UTC(), 1); err == nil && next.IsZero() {
		next = runs[0]
	}
	s.logger.Info("scheduler started",
		"cron", expr,
		"schedule", s.cfg.Description(),
		"next_run", next.UTC().Format(time.RFC3339),
	)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// IsRunning reports whether the cron loop is active.
func (s *Scheduler) IsRunning() bool {
	return s.scheduler.IsRunning()
}
