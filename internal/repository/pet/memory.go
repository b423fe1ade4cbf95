package pet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/candidate"
	dompet "github.com/kailas-cloud/petmatch/internal/domain/pet"
)

// Memory is an in-process pet repository for local runs and tests.
type Memory struct {
	mu   sync.RWMutex
	pets map[string]dompet.Pet
}

// NewMemory creates an empty in-memory pet repository.
func NewMemory() *Memory {
	return &Memory{pets: make(map[string]dompet.Pet)}
}

// Put inserts or replaces a pet.
func (r *Memory) Put(p dompet.Pet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pets[p.ID] = clonePet(p)
}

// GetByID loads a pet.
func (r *Memory) GetByID(_ context.Context, id string) (dompet.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pets[id]
	if !ok {
		return dompet.Pet{}, fmt.Errorf("%w: %s", domain.ErrPetNotFound, id)
	}
	return clonePet(p), nil
}

// GetMany loads pets by id. Missing ids are absent from the result.
func (r *Memory) GetMany(_ context.Context, ids []string) (map[string]dompet.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]dompet.Pet, len(ids))
	for _, id := range ids {
		if p, ok := r.pets[id]; ok {
			out[id] = clonePet(p)
		}
	}
	return out, nil
}

// IDsByOwner returns the ids of every pet reported by ownerID.
func (r *Memory) IDsByOwner(_ context.Context, ownerID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, p := range r.pets {
		if p.Owner.ID == ownerID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// FindCandidates applies the prefilter to every stored pet and returns one page
// in candidate order.
func (r *Memory) FindCandidates(_ context.Context, q candidate.Query) ([]dompet.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []dompet.Pet
	for _, p := range r.pets {
		if !matchesQuery(p, q) {
			continue
		}
		out = append(out, clonePet(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ListRecent returns the pets selected by q, oldest first.
func (r *Memory) ListRecent(_ context.Context, q dompet.RecentQuery) ([]dompet.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []dompet.Pet
	for _, p := range r.pets {
		if q.Includes(p) {
			out = append(out, clonePet(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// SaveFeatures stores the feature record on a pet.
func (r *Memory) SaveFeatures(_ context.Context, id string, f dompet.Features) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pets[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrPetNotFound, id)
	}
	f.Vector = append([]float32(nil), f.Vector...)
	p.Features = &f
	r.pets[id] = p
	return nil
}

func matchesQuery(p dompet.Pet, q candidate.Query) bool {
	if p.Status != q.Status || p.Owner.ID == q.ExcludeOwner || p.ID == q.ExcludePetID {
		return false
	}
	if !p.Scoreable() {
		return false
	}
	if q.CreatedFrom != nil && p.CreatedAt.Before(*q.CreatedFrom) {
		return false
	}
	if q.CreatedTo != nil && p.CreatedAt.After(*q.CreatedTo) {
		return false
	}
	if q.Box != nil {
		if p.Location == nil || !q.Box.Contains(*p.Location) {
			return false
		}
	}
	if q.After != nil && !q.After.Precedes(p) {
		return false
	}
	return true
}

func clonePet(p dompet.Pet) dompet.Pet {
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	if p.Features != nil {
		f := *p.Features
		f.Vector = append([]float32(nil), f.Vector...)
		p.Features = &f
	}
	p.ImageURLs = append([]string(nil), p.ImageURLs...)
	return p
}
