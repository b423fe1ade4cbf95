package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain"
	dommatch "github.com/kailas-cloud/petmatch/internal/domain/match"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newMatch(t *testing.T, id, lost, found string, score float64, created time.Time) dommatch.Match {
	t.Helper()
	m, err := dommatch.New(id,
		pet.Pet{ID: lost, Owner: pet.Owner{ID: "owner-" + lost}, Status: pet.StatusLost},
		pet.Pet{ID: found, Owner: pet.Owner{ID: "owner-" + found}, Status: pet.StatusFound},
		score, created)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestMemory_CreateDuplicate(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()

	if err := r.Create(ctx, newMatch(t, "m1", "L", "F", 0.9, t0)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := r.Create(ctx, newMatch(t, "m2", "L", "F", 0.7, t0))
	if !errors.Is(err, domain.ErrDuplicateMatch) {
		t.Fatalf("expected ErrDuplicateMatch, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	stored, _ := r.GetByID(ctx, "m1")
	if stored.Similarity() != 0.9 {
		t.Error("duplicate create must not overwrite the stored match")
	}

	// the reverse orientation is a different ordered pair
	if err := r.Create(ctx, newMatch(t, "m3", "F2", "L2", 0.9, t0)); err != nil {
		t.Fatalf("unrelated pair: %v", err)
	}
}

func TestMemory_CreateConcurrent(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		created atomic.Int32
		dups    atomic.Int32
	)
	ms := make([]dommatch.Match, 32)
	for i := range ms {
		ms[i] = newMatch(t, fmt.Sprintf("m%d", i), "L", "F", 0.9, t0)
	}
	for _, m := range ms {
		wg.Add(1)
		go func(m dommatch.Match) {
			defer wg.Done()
			err := r.Create(ctx, m)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, domain.ErrDuplicateMatch):
				dups.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(m)
	}
	wg.Wait()

	if created.Load() != 1 || dups.Load() != 31 {
		t.Fatalf("created=%d duplicates=%d, want 1/31", created.Load(), dups.Load())
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestMemory_UpdateStatus(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	m := newMatch(t, "m1", "L", "F", 0.9, t0)
	_ = r.Create(ctx, m)

	confirmed, _ := m.Transition("owner-L", dommatch.StatusConfirmed, "", t0.Add(time.Hour))
	if err := r.UpdateStatus(ctx, confirmed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	// a writer that read the match while it was still pending loses the race
	rejected, _ := m.Transition("owner-F", dommatch.StatusRejected, "", t0.Add(2*time.Hour))
	if err := r.UpdateStatus(ctx, rejected); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	got, _ := r.GetByID(ctx, "m1")
	if got.Status() != dommatch.StatusConfirmed {
		t.Errorf("status = %s, first transition must win", got.Status())
	}

	ghost := newMatch(t, "ghost", "X", "Y", 0.9, t0)
	if err := r.UpdateStatus(ctx, ghost); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestMemory_GetByID_NotFound(t *testing.T) {
	if _, err := NewMemory().GetByID(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_ListByPets(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	_ = r.Create(ctx, newMatch(t, "a", "L1", "F1", 0.7, t0))
	_ = r.Create(ctx, newMatch(t, "b", "L1", "F2", 0.9, t0.Add(time.Hour)))
	_ = r.Create(ctx, newMatch(t, "c", "L2", "F1", 0.8, t0.Add(2*time.Hour)))
	_ = r.Create(ctx, newMatch(t, "d", "L3", "F3", 0.8, t0.Add(3*time.Hour)))

	q := dommatch.ListQuery{UserID: "u", Page: 1, Limit: 2, SortBy: dommatch.SortCreatedAt, SortOrder: dommatch.Desc}
	got, total, err := r.ListByPets(ctx, []string{"L1", "F1"}, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(got) != 2 || got[0].ID() != "c" || got[1].ID() != "b" {
		t.Fatalf("page 1 = %v (total %d)", got, total)
	}

	q.Page = 2
	got, _, _ = r.ListByPets(ctx, []string{"L1", "F1"}, q)
	if len(got) != 1 || got[0].ID() != "a" {
		t.Fatalf("page 2 = %v", got)
	}

	q.Page = 5
	got, total, _ = r.ListByPets(ctx, []string{"L1", "F1"}, q)
	if len(got) != 0 || total != 3 {
		t.Fatalf("page past the end = %v (total %d)", got, total)
	}

	q = dommatch.ListQuery{UserID: "u", Page: 1, Limit: 10, SortBy: dommatch.SortSimilarity, SortOrder: dommatch.Asc}
	got, _, _ = r.ListByPets(ctx, []string{"L1"}, q)
	if len(got) != 2 || got[0].ID() != "a" {
		t.Fatalf("similarity asc = %v", got)
	}
}

func TestMemory_ListByPets_StatusFilter(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	m := newMatch(t, "a", "L1", "F1", 0.7, t0)
	_ = r.Create(ctx, m)
	_ = r.Create(ctx, newMatch(t, "b", "L1", "F2", 0.9, t0))
	confirmed, _ := m.Transition("owner-L1", dommatch.StatusConfirmed, "", t0)
	_ = r.UpdateStatus(ctx, confirmed)

	q := dommatch.ListQuery{UserID: "u", Status: dommatch.StatusConfirmed, Page: 1, Limit: 10, SortBy: dommatch.SortCreatedAt, SortOrder: dommatch.Desc}
	got, total, _ := r.ListByPets(ctx, []string{"L1"}, q)
	if total != 1 || got[0].ID() != "a" {
		t.Fatalf("confirmed only = %v", got)
	}
}

func TestMemory_Stats(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()

	s, err := r.Stats(ctx, dommatch.Window{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != (dommatch.Stats{}) {
		t.Fatalf("empty stats = %+v", s)
	}

	_ = r.Create(ctx, newMatch(t, "a", "L1", "F1", 0.9, t0))
	_ = r.Create(ctx, newMatch(t, "b", "L1", "F2", 0.6, t0.Add(48*time.Hour)))

	s, _ = r.Stats(ctx, dommatch.Window{})
	if s.Total != 2 || s.Pending != 2 || s.High != 1 || s.Low != 1 {
		t.Errorf("stats = %+v", s)
	}

	end := t0.Add(time.Hour)
	s, _ = r.Stats(ctx, dommatch.Window{End: &end})
	if s.Total != 1 || s.AverageSimilarity != 0.9 {
		t.Errorf("windowed stats = %+v", s)
	}
}
