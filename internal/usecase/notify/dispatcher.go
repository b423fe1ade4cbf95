package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain/match"
	"github.com/kailas-cloud/petmatch/internal/metrics"
)

// Dispatcher delivers match notifications off the request path. Enqueue never
// blocks: events that do not fit the queue are dropped and counted.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan match.Details
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines reading from a queue of queueSize events.
func NewDispatcher(n Notifier, workers, queueSize int, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	workers = max(workers, 1)
	queueSize = max(queueSize, 1)

	d := &Dispatcher{
		notifier: n,
		timeout:  timeout,
		logger:   logger,
		queue:    make(chan match.Details, queueSize),
	}
	for i := range workers {
		d.wg.Add(1)
		go d.work(i)
	}
	return d
}

// Enqueue schedules notifications for a stored match.
func (d *Dispatcher) Enqueue(ev match.Details) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "dispatcher closed")
		return
	}
	select {
	case d.queue <- ev:
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev match.Details, reason string) {
	metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
	d.logger.Warn("Match notification dropped",
		zap.String("match_id", ev.Match.ID()),
		zap.String("reason", reason),
	)
}

func (d *Dispatcher) work(idx int) {
	defer d.wg.Done()
	for ev := range d.queue {
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
		d.deliver(idx, ev)
	}
}

func (d *Dispatcher) deliver(idx int, ev match.Details) {
	for _, r := range recipients(ev) {
		if r.email == "" {
			d.logger.Debug("Owner has no email, skipping notification",
				zap.String("match_id", ev.Match.ID()),
				zap.String("pet_id", r.summary.PetID),
			)
			continue
		}

		ctx := context.Background()
		var cancel context.CancelFunc = func() {}
		if d.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
		}
		err := d.notifier.NotifyMatch(ctx, r.email, r.summary)
		cancel()

		if err != nil {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			d.logger.Error("Match notification failed",
				zap.Int("worker", idx),
				zap.String("match_id", ev.Match.ID()),
				zap.String("side", r.summary.Side),
				zap.Error(err),
			)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	}
}

// Close stops accepting events and waits for queued ones to be delivered or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notifications: %w", ctx.Err())
	}
}
