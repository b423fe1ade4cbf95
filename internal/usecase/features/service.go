package features

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/petmatch/internal/domain/pet"
)

// Service makes sure pets carry a feature record before they are scored.
type Service struct {
	provider Provider
	store    Store
}

// New creates a feature service. A nil provider leaves unscored pets as they are.
func New(provider Provider, store Store) *Service {
	return &Service{provider: provider, store: store}
}

// EnsureFeatures returns p with a feature record. Pets that already carry one are
// returned unchanged; otherwise the provider is called and the result persisted.
func (s *Service) EnsureFeatures(ctx context.Context, p pet.Pet) (pet.Pet, error) {
	if p.Scoreable() || s.provider == nil {
		return p, nil
	}

	f, err := s.provider.Analyze(ctx, p)
	if err != nil {
		return p, fmt.Errorf("extract features: %w", err)
	}
	if err := s.store.SaveFeatures(ctx, p.ID, f); err != nil {
		return p, fmt.Errorf("save features: %w", err)
	}

	p.Features = &f
	return p, nil
}
