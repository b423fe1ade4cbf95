package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/petmatch/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "lease:"

// store is the consumer interface for leases (ISP).
type store interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	DelIfEqual(ctx context.Context, key string, value []byte) (bool, error)
}

// Locker hands out a named single-holder lease that expires after ttl.
type Locker struct {
	store store
	key   string
	ttl   time.Duration
	token func() string
}

// New creates a lease for name.
func New(s store, name string, ttl time.Duration) *Locker {
	return &Locker{store: s, key: keyPrefix + name, ttl: ttl, token: uuid.NewString}
}

// TryAcquire takes the lease if nobody holds it. On success the returned release
// func frees it; releasing after expiry is a no-op and never frees another
// holder's lease.
func (l *Locker) TryAcquire(ctx context.Context) (release func(context.Context) error, ok bool, err error) {
	token := []byte(l.token())
	ok, err = l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if _, err := l.store.DelIfEqual(ctx, l.key, token); err != nil {
			return fmt.Errorf("release lease %s: %w", l.key, err)
		}
		return nil
	}, true, nil
}
