package automatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain/sweep"
)

type mockRunner struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (m *mockRunner) Run(ctx context.Context, _ Options) (*sweep.Summary, error) {
	m.calls.Add(1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
		}
	}
	return sweep.NewSummary("run", time.Now()), nil
}

type mockLease struct {
	ok       bool
	err      error
	released atomic.Int32
}

func (m *mockLease) TryAcquire(context.Context) (func(context.Context) error, bool, error) {
	if m.err != nil || !m.ok {
		return nil, false, m.err
	}
	return func(context.Context) error {
		m.released.Add(1)
		return nil
	}, true, nil
}

func newTestScheduler(r Runner, opts ...SchedulerOption) (*Scheduler, chan time.Time, chan *sweep.Summary) {
	trigger := make(chan time.Time)
	runs := make(chan *sweep.Summary, 8)
	s := NewScheduler(r, time.Hour, zap.NewNop(), append(opts, WithTrigger(trigger), WithSummaries(runs))...)
	return s, trigger, runs
}

func waitRun(t *testing.T, runs <-chan *sweep.Summary) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not finish")
	}
}

func TestScheduler_RunsOnTrigger(t *testing.T) {
	r := &mockRunner{}
	s, trigger, runs := newTestScheduler(r)
	s.Start(context.Background())
	defer s.Stop()

	trigger <- time.Now()
	waitRun(t, runs)
	trigger <- time.Now()
	waitRun(t, runs)

	if r.calls.Load() != 2 {
		t.Fatalf("runs = %d, want 2", r.calls.Load())
	}
}

func TestScheduler_SkipsWhileRunning(t *testing.T) {
	r := &mockRunner{gate: make(chan struct{})}
	s, trigger, runs := newTestScheduler(r)
	s.Start(context.Background())
	defer s.Stop()

	trigger <- time.Now()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Running() {
		if time.Now().After(deadline) {
			t.Fatal("sweep never started")
		}
		time.Sleep(time.Millisecond)
	}
	trigger <- time.Now()
	trigger <- time.Now()

	close(r.gate)
	waitRun(t, runs)
	if r.calls.Load() != 1 {
		t.Fatalf("overlapping runs: %d", r.calls.Load())
	}
}

func TestScheduler_Lease(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		r := &mockRunner{}
		s, trigger, _ := newTestScheduler(r, WithLease(&mockLease{ok: false}))
		s.Start(context.Background())
		trigger <- time.Now()
		s.Stop()
		if r.calls.Load() != 0 {
			t.Fatalf("ran without the lease")
		}
	})
	t.Run("lease error", func(t *testing.T) {
		r := &mockRunner{}
		s, trigger, _ := newTestScheduler(r, WithLease(&mockLease{err: errors.New("valkey down")}))
		s.Start(context.Background())
		trigger <- time.Now()
		s.Stop()
		if r.calls.Load() != 0 {
			t.Fatalf("ran without the lease")
		}
	})
	t.Run("acquired and released", func(t *testing.T) {
		r := &mockRunner{}
		l := &mockLease{ok: true}
		s, trigger, runs := newTestScheduler(r, WithLease(l))
		s.Start(context.Background())
		trigger <- time.Now()
		waitRun(t, runs)
		s.Stop()
		if r.calls.Load() != 1 || l.released.Load() != 1 {
			t.Fatalf("calls=%d released=%d", r.calls.Load(), l.released.Load())
		}
	})
}

func TestScheduler_StopCancelsInFlightRun(t *testing.T) {
	r := &mockRunner{gate: make(chan struct{})}
	s, trigger, _ := newTestScheduler(r)
	s.Start(context.Background())
	trigger <- time.Now()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	s.Stop()
}

func TestScheduler_UnreadSummariesDoNotBlockStop(t *testing.T) {
	r := &mockRunner{}
	trigger := make(chan time.Time)
	unread := make(chan *sweep.Summary)
	s := NewScheduler(r, time.Hour, zap.NewNop(), WithTrigger(trigger), WithSummaries(unread))
	s.Start(context.Background())

	trigger <- time.Now()
	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() == 0 || s.Running() {
		if time.Now().After(deadline) {
			t.Fatal("sweep did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	trigger <- time.Now()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an unread summary channel")
	}
	if r.calls.Load() != 2 {
		t.Errorf("runs = %d, want 2: the loop must keep accepting triggers", r.calls.Load())
	}
}
