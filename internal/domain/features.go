package domain

import (
	"context"

	"github.com/kailas-cloud/petmatch/internal/domain/pet"
)

// FeatureProvider is the pet feature extraction contract between layers.
// Failures are reported wrapped in ErrFeatureProvider.
type FeatureProvider interface {
	Analyze(ctx context.Context, p pet.Pet) (pet.Features, error)
}

// HealthChecker verifies external provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
