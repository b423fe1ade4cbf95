package featcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/db"
	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
)

var testPet = pet.Pet{ID: "p1", Species: "dog", Breed: "beagle", Color: "tricolor"}

func TestAnalyze_CacheMiss(t *testing.T) {
	inner := &mockProvider{result: pet.Features{
		Vector:        []float32{0.1, 0.2, 0.3},
		BreedEstimate: "beagle",
		Confidence:    0.9,
		Model:         "test-model",
	}}
	cp, ms := newTestCachedProvider(t, inner)

	var (
		setKey string
		setTTL time.Duration
		stored []byte
	)
	ms.setFn = func(_ context.Context, key string, value []byte, ttl time.Duration) error {
		setKey, setTTL, stored = key, ttl, value
		return nil
	}

	f, err := cp.Analyze(context.Background(), testPet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Vector) != 3 || f.Vector[0] != 0.1 || f.BreedEstimate != "beagle" {
		t.Fatalf("unexpected features: %+v", f)
	}
	if !strings.HasPrefix(setKey, domain.KeyPrefix+"feat_cache:") {
		t.Errorf("unexpected cache key %q", setKey)
	}
	if setTTL != time.Hour {
		t.Errorf("ttl = %v, want 1h", setTTL)
	}
	if len(stored) == 0 {
		t.Fatal("expected features to be cached")
	}
}

func TestAnalyze_CacheHit(t *testing.T) {
	inner := &mockProvider{result: pet.Features{Vector: []float32{0.1}}}
	cp, ms := newTestCachedProvider(t, inner)

	// Round-trip through the real encoding.
	var stored []byte
	ms.setFn = func(_ context.Context, _ string, value []byte, _ time.Duration) error {
		stored = value
		return nil
	}
	cp.putToCache(context.Background(), "k", pet.Features{
		Vector: []float32{0.4, 0.5, 0.6}, BreedEstimate: "collie", Confidence: 0.7, Model: "test-model",
	})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) { return stored, nil }

	f, err := cp.Analyze(context.Background(), testPet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Vector) != 3 || f.Vector[0] != 0.4 || f.BreedEstimate != "collie" || f.Confidence != 0.7 {
		t.Fatalf("expected cached features, got: %+v", f)
	}
	if inner.calls != 0 {
		t.Errorf("inner provider called %d times on hit", inner.calls)
	}
}

func TestAnalyze_CorruptEntryFallsThrough(t *testing.T) {
	inner := &mockProvider{result: pet.Features{Vector: []float32{1}}}
	cp, ms := newTestCachedProvider(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) { return []byte("{not json"), nil }

	f, err := cp.Analyze(context.Background(), testPet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || f.Vector[0] != 1 {
		t.Errorf("corrupt cache entry must fall through to the provider")
	}
}

func TestAnalyze_StoreErrorFallsThrough(t *testing.T) {
	inner := &mockProvider{result: pet.Features{Vector: []float32{1}}}
	cp, ms := newTestCachedProvider(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, &db.Error{Op: db.OpGet, Err: context.DeadlineExceeded}
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("cache down")
	}

	if _, err := cp.Analyze(context.Background(), testPet); err != nil {
		t.Fatalf("cache outage must not fail analysis: %v", err)
	}
}

func TestAnalyze_InnerError(t *testing.T) {
	inner := &mockProvider{err: domain.ErrFeatureProvider}
	cp, ms := newTestCachedProvider(t, inner)
	var setCalled bool
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		setCalled = true
		return nil
	}

	_, err := cp.Analyze(context.Background(), testPet)
	if !errors.Is(err, domain.ErrFeatureProvider) {
		t.Fatalf("expected ErrFeatureProvider, got %v", err)
	}
	if setCalled {
		t.Error("failures must not be cached")
	}
}

func TestCacheKey(t *testing.T) {
	cp, _ := newTestCachedProvider(t, &mockProvider{})
	other := New(&mockProvider{}, &mockKVStore{}, "other-model", time.Hour, nil, zap.NewNop())

	if cp.cacheKey("a") != cp.cacheKey("a") {
		t.Error("cache key must be deterministic")
	}
	if cp.cacheKey("a") == cp.cacheKey("b") {
		t.Error("different descriptors must not collide")
	}
	if cp.cacheKey("a") == other.cacheKey("a") {
		t.Error("different models must not share entries")
	}
}

func TestAnalyze_Metrics(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_feature_cache_total"}, []string{"result"})
	inner := &mockProvider{result: pet.Features{Vector: []float32{1}}}
	ms := &mockKVStore{}
	cp := New(inner, ms, "m", time.Hour, counter, zap.NewNop())

	if _, err := cp.Analyze(context.Background(), testPet); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss counter = %v, want 1", got)
	}
}

func TestVectorCacheBytes_Invalid(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
