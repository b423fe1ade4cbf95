package notify

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain/match"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
	"github.com/kailas-cloud/petmatch/internal/domain/similarity"
	"github.com/kailas-cloud/petmatch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterMatchingMetrics()
	os.Exit(m.Run())
}

type call struct {
	to string
	s  Summary
}

type mockNotifier struct {
	mu     sync.Mutex
	calls  []call
	err    error
	gate   chan struct{}
	called chan struct{}
}

func (m *mockNotifier) NotifyMatch(_ context.Context, to string, s Summary) error {
	if m.called != nil {
		m.called <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{to: to, s: s})
	return m.err
}

func (m *mockNotifier) snapshot() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]call(nil), m.calls...)
}

func details(id string) match.Details {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := match.Reconstruct(id, "L", "F", 0.9, similarity.High, match.StatusPending,
		nil, nil, "", "", now, now)
	return match.Details{
		Match: m,
		Lost:  pet.Pet{ID: "L", Name: "Rex", Owner: pet.Owner{ID: "U1", Email: "u1@example.com"}},
		Found: pet.Pet{ID: "F", Owner: pet.Owner{ID: "U2", Email: "u2@example.com"}},
	}
}

func TestDispatcher_NotifiesBothOwners(t *testing.T) {
	n := &mockNotifier{}
	d := NewDispatcher(n, 2, 8, time.Second, zap.NewNop())

	d.Enqueue(details("m1"))
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	calls := n.snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(calls))
	}
	byTo := map[string]Summary{}
	for _, c := range calls {
		byTo[c.to] = c.s
	}
	lost, found := byTo["u1@example.com"], byTo["u2@example.com"]
	if lost.Side != "lost" || lost.PetName != "Rex" || lost.CounterpartPetID != "F" {
		t.Errorf("lost owner summary: %+v", lost)
	}
	if found.Side != "found" || found.CounterpartPetID != "L" || found.Confidence != "high" {
		t.Errorf("found owner summary: %+v", found)
	}
}

func TestDispatcher_SkipsOwnersWithoutEmail(t *testing.T) {
	n := &mockNotifier{}
	d := NewDispatcher(n, 1, 1, 0, zap.NewNop())

	ev := details("m1")
	ev.Found.Owner.Email = ""
	d.Enqueue(ev)
	_ = d.Close(context.Background())

	if calls := n.snapshot(); len(calls) != 1 || calls[0].to != "u1@example.com" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	n := &mockNotifier{gate: make(chan struct{}), called: make(chan struct{}, 16)}
	d := NewDispatcher(n, 1, 1, 0, zap.NewNop())
	dropped := metrics.NotificationsTotal.WithLabelValues("dropped")
	before := testutil.ToFloat64(dropped)

	d.Enqueue(details("busy"))
	<-n.called // the only worker is now blocked
	d.Enqueue(details("queued"))
	d.Enqueue(details("overflow"))

	if got := testutil.ToFloat64(dropped) - before; got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}

	close(n.gate)
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if calls := n.snapshot(); len(calls) != 4 {
		t.Fatalf("expected 4 notifications for 2 delivered events, got %d", len(calls))
	}
}

func TestDispatcher_FailuresDoNotStopWorkers(t *testing.T) {
	n := &mockNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(n, 1, 4, 0, zap.NewNop())
	failed := metrics.NotificationsTotal.WithLabelValues("failed")
	before := testutil.ToFloat64(failed)

	d.Enqueue(details("m1"))
	d.Enqueue(details("m2"))
	_ = d.Close(context.Background())

	if got := testutil.ToFloat64(failed) - before; got != 4 {
		t.Fatalf("failed = %v, want 4", got)
	}
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	n := &mockNotifier{}
	d := NewDispatcher(n, 1, 1, 0, zap.NewNop())
	_ = d.Close(context.Background())

	d.Enqueue(details("late"))
	if len(n.snapshot()) != 0 {
		t.Fatal("closed dispatcher must not deliver")
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDispatcher_CloseHonorsContext(t *testing.T) {
	n := &mockNotifier{gate: make(chan struct{}), called: make(chan struct{}, 4)}
	d := NewDispatcher(n, 1, 1, 0, zap.NewNop())
	d.Enqueue(details("stuck"))
	<-n.called

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	close(n.gate)
}
