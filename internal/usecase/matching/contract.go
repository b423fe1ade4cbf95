package matching

import (
	"context"

	"github.com/kailas-cloud/petmatch/internal/domain/candidate"
	"github.com/kailas-cloud/petmatch/internal/domain/match"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
)

// PetRepository is the read side of pets the engine needs.
type PetRepository interface {
	GetByID(ctx context.Context, id string) (pet.Pet, error)
	GetMany(ctx context.Context, ids []string) (map[string]pet.Pet, error)
	IDsByOwner(ctx context.Context, ownerID string) ([]string, error)
	FindCandidates(ctx context.Context, q candidate.Query) ([]pet.Pet, error)
}

// MatchRepository persists matches. Create fails with domain.ErrDuplicateMatch when
// the (lost, found) pair already has a match; UpdateStatus only succeeds while the
// stored match is still pending.
type MatchRepository interface {
	Create(ctx context.Context, m match.Match) error
	GetByID(ctx context.Context, id string) (match.Match, error)
	UpdateStatus(ctx context.Context, m match.Match) error
	ListByPets(ctx context.Context, petIDs []string, q match.ListQuery) ([]match.Match, int, error)
	Stats(ctx context.Context, w match.Window) (match.Stats, error)
}

// FeatureEnsurer gives unscored pets a feature record.
type FeatureEnsurer interface {
	EnsureFeatures(ctx context.Context, p pet.Pet) (pet.Pet, error)
}

// Notifier receives newly created matches after they are stored. Enqueue must not block.
type Notifier interface {
	Enqueue(d match.Details)
}
