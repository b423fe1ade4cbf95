package automatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain/sweep"
	"github.com/kailas-cloud/petmatch/internal/metrics"
)

// Runner performs one sweep.
type Runner interface {
	Run(ctx context.Context, opts Options) (*sweep.Summary, error)
}

// Scheduler triggers sweeps periodically. A trigger that fires while a sweep is
// still running is skipped, so runs never overlap within a process; the optional
// lease extends that guarantee across replicas.
type Scheduler struct {
	runner   Runner
	lease    Lease
	interval time.Duration
	trigger  <-chan time.Time
	logger   *zap.Logger

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runs    chan<- *sweep.Summary
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTrigger replaces the interval ticker with an external trigger.
func WithTrigger(c <-chan time.Time) SchedulerOption {
	return func(s *Scheduler) { s.trigger = c }
}

// WithLease requires holding l for every sweep.
func WithLease(l Lease) SchedulerOption {
	return func(s *Scheduler) { s.lease = l }
}

// WithSummaries publishes every finished sweep on c. A summary is dropped when c
// is not ready to receive, so a slow reader never holds up the scheduler.
func WithSummaries(c chan<- *sweep.Summary) SchedulerOption {
	return func(s *Scheduler) { s.runs = c }
}

// NewScheduler creates a scheduler running runner every interval.
func NewScheduler(runner Runner, interval time.Duration, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{runner: runner, interval: interval, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the trigger loop. It returns immediately; Stop ends the loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	trigger := s.trigger
	var ticker *time.Ticker
	if trigger == nil {
		ticker = time.NewTicker(s.interval)
		trigger = ticker.C
	}

	go func() {
		defer close(s.done)
		if ticker != nil {
			defer ticker.Stop()
		}
		var wg sync.WaitGroup
		defer wg.Wait()

		for {
			select {
			case <-ctx.Done():
				return
			case <-trigger:
				if !s.running.CompareAndSwap(false, true) {
					metrics.SweepRunsTotal.WithLabelValues("skipped").Inc()
					s.logger.Warn("Sweep still running, skipping tick")
					continue
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					summary := s.tick(ctx)
					s.running.Store(false)
					if s.runs != nil && summary != nil {
						select {
						case s.runs <- summary:
						default:
							s.logger.Debug("Sweep summary dropped, no reader")
						}
					}
				}()
			}
		}
	}()
	s.logger.Info("Sweep scheduler started", zap.Duration("interval", s.interval))
}

func (s *Scheduler) tick(ctx context.Context) *sweep.Summary {
	if s.lease != nil {
		release, ok, err := s.lease.TryAcquire(ctx)
		if err != nil {
			s.logger.Error("Sweep lease unavailable", zap.Error(err))
			return nil
		}
		if !ok {
			metrics.SweepRunsTotal.WithLabelValues("skipped").Inc()
			s.logger.Info("Sweep lease held elsewhere, skipping tick")
			return nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Sweep lease release failed", zap.Error(err))
			}
		}()
	}

	summary, err := s.runner.Run(ctx, Options{})
	if err != nil {
		s.logger.Error("Scheduled sweep failed", zap.Error(err))
	}
	return summary
}

// Running reports whether a sweep is in progress.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Stop ends the trigger loop and waits for an in-flight sweep to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Sweep scheduler stopped")
}
