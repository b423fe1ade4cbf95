package match

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/petmatch/internal/domain"
	dommatch "github.com/kailas-cloud/petmatch/internal/domain/match"
)

type pairKey struct{ lost, found string }

// Memory is an in-process match repository. A pair index checked and written
// under the same lock gives the same uniqueness guarantee as the SQL constraint.
type Memory struct {
	mu      sync.RWMutex
	matches map[string]dommatch.Match
	pairs   map[pairKey]string
}

// NewMemory creates an empty in-memory match repository.
func NewMemory() *Memory {
	return &Memory{
		matches: make(map[string]dommatch.Match),
		pairs:   make(map[pairKey]string),
	}
}

// Create inserts a match unless its pair already exists.
func (r *Memory) Create(_ context.Context, m dommatch.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{m.LostPetID(), m.FoundPetID()}
	if _, ok := r.pairs[k]; ok {
		return duplicate(m)
	}
	if _, ok := r.matches[m.ID()]; ok {
		return fmt.Errorf("match id %s already used", m.ID())
	}
	r.pairs[k] = m.ID()
	r.matches[m.ID()] = m
	return nil
}

// GetByID loads a match.
func (r *Memory) GetByID(_ context.Context, id string) (dommatch.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	if !ok {
		return dommatch.Match{}, fmt.Errorf("%w: %s", domain.ErrMatchNotFound, id)
	}
	return m, nil
}

// UpdateStatus replaces a match only while the stored one is still pending.
func (r *Memory) UpdateStatus(_ context.Context, m dommatch.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.matches[m.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrMatchNotFound, m.ID())
	}
	if cur.Status() != dommatch.StatusPending {
		return fmt.Errorf("%w: match %s", domain.ErrAlreadyProcessed, m.ID())
	}
	r.matches[m.ID()] = m
	return nil
}

// ListByPets returns one page of matches involving any of petIDs, plus the total.
func (r *Memory) ListByPets(_ context.Context, petIDs []string, q dommatch.ListQuery) ([]dommatch.Match, int, error) {
	want := make(map[string]struct{}, len(petIDs))
	for _, id := range petIDs {
		want[id] = struct{}{}
	}

	r.mu.RLock()
	var all []dommatch.Match
	for _, m := range r.matches {
		_, lost := want[m.LostPetID()]
		_, found := want[m.FoundPetID()]
		if !lost && !found {
			continue
		}
		if q.Status != "" && m.Status() != q.Status {
			continue
		}
		all = append(all, m)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return q.Less(all[i], all[j]) })

	total := len(all)
	start := q.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := min(start+q.Limit, total)
	return all[start:end], total, nil
}

// Stats aggregates matches created within w.
func (r *Memory) Stats(_ context.Context, w dommatch.Window) (dommatch.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var t dommatch.Tally
	for _, m := range r.matches {
		if w.Contains(m.CreatedAt()) {
			t.Add(m)
		}
	}
	return t.Stats(), nil
}

// Len returns the number of stored matches.
func (r *Memory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}
