package features

import (
	"context"

	"github.com/kailas-cloud/petmatch/internal/domain/pet"
)

// Provider extracts features for a pet.
type Provider interface {
	Analyze(ctx context.Context, p pet.Pet) (pet.Features, error)
}

// Store persists extracted features on a pet.
type Store interface {
	SaveFeatures(ctx context.Context, petID string, f pet.Features) error
}
