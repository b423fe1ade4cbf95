package featcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/db"
	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
)

var cacheKeyPrefix = domain.KeyPrefix + "feat_cache:"

// store is the consumer interface for the feature cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// entry is the cached form of pet.Features. The vector is packed little-endian.
type entry struct {
	Vector      []byte    `json:"v"`
	Breed       string    `json:"breed,omitempty"`
	Confidence  float64   `json:"conf,omitempty"`
	Model       string    `json:"model"`
	ExtractedAt time.Time `json:"at"`
}

// CachedProvider caches feature records in a key-value store, keyed by the pet
// descriptor so that identical reports share one provider call.
type CachedProvider struct {
	inner      domain.FeatureProvider
	store      store
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.FeatureProvider,
	s store,
	model string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedProvider {
	return &CachedProvider{
		inner:      inner,
		store:      s,
		model:      model,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Analyze returns cached features or calls the inner provider.
func (c *CachedProvider) Analyze(ctx context.Context, p pet.Pet) (pet.Features, error) {
	key := c.cacheKey(p.Descriptor())

	if f, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return f, nil
	}

	c.incCache("miss")

	f, err := c.inner.Analyze(ctx, p)
	if err != nil {
		return pet.Features{}, fmt.Errorf("analyze pet %s: %w", p.ID, err)
	}

	c.putToCache(ctx, key, f)
	return f, nil
}

func (c *CachedProvider) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedProvider) cacheKey(descriptor string) string {
	h := sha256.Sum256([]byte(c.model + "\x00" + descriptor))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedProvider) getFromCache(ctx context.Context, key string) (pet.Features, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached features", zap.String("key", key), zap.Error(err))
		}
		return pet.Features{}, false
	}
	if len(data) == 0 {
		return pet.Features{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("Failed to parse cached features", zap.String("key", key), zap.Error(err))
		return pet.Features{}, false
	}
	vec, err := bytesToVector(e.Vector)
	if err != nil || len(vec) == 0 {
		c.logger.Warn("Failed to parse cached vector", zap.String("key", key), zap.Error(err))
		return pet.Features{}, false
	}

	return pet.Features{
		Vector:        vec,
		BreedEstimate: e.Breed,
		Confidence:    e.Confidence,
		Model:         e.Model,
		ExtractedAt:   e.ExtractedAt,
	}, true
}

func (c *CachedProvider) putToCache(ctx context.Context, key string, f pet.Features) {
	data, err := json.Marshal(entry{
		Vector:      vectorToCacheBytes(f.Vector),
		Breed:       f.BreedEstimate,
		Confidence:  f.Confidence,
		Model:       f.Model,
		ExtractedAt: f.ExtractedAt,
	})
	if err != nil {
		c.logger.Warn("Failed to encode features", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache features", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid feature cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
