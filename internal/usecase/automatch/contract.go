package automatch

import (
	"context"

	"github.com/kailas-cloud/petmatch/internal/domain/candidate"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
)

// RecentPets lists lost and found pets created since a point in time, oldest first.
type RecentPets interface {
	ListRecent(ctx context.Context, q pet.RecentQuery) ([]pet.Pet, error)
}

// PetMatcher runs candidate search for one pet and stores the resulting matches.
type PetMatcher interface {
	MatchPet(ctx context.Context, subject pet.Pet, opts candidate.Options, source string) (created, duplicates int, err error)
}

// Lease guards a sweep against concurrent runs on other replicas.
type Lease interface {
	TryAcquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}
