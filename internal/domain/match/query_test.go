package match

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/similarity"
)

func TestListQueryDefaults(t *testing.T) {
	q := ListQuery{UserID: "u1"}
	q.ApplyDefaults(DefaultPageLimit)
	if q.Page != 1 || q.Limit != 10 || q.SortBy != SortCreatedAt || q.SortOrder != Desc {
		t.Errorf("unexpected defaults: %+v", q)
	}
	if err := q.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if q.Offset() != 0 {
		t.Errorf("Offset() = %d", q.Offset())
	}
}

func TestListQueryValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*ListQuery)
	}{
		{"no user", func(q *ListQuery) { q.UserID = "" }},
		{"bad status", func(q *ListQuery) { q.Status = "archived" }},
		{"negative page", func(q *ListQuery) { q.Page = -1 }},
		{"limit too big", func(q *ListQuery) { q.Limit = 101 }},
		{"bad sort", func(q *ListQuery) { q.SortBy = "name" }},
		{"bad order", func(q *ListQuery) { q.SortOrder = "up" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := ListQuery{UserID: "u1"}
			q.ApplyDefaults(DefaultPageLimit)
			tc.mut(&q)
			if err := q.Validate(); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestListQueryLess(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, created time.Duration, score float64) Match {
		return Reconstruct(id, "L", "F", score, similarity.Classify(score), StatusPending,
			nil, nil, "", "", t0.Add(created), t0.Add(created))
	}
	ms := []Match{mk("a", 2*time.Hour, 0.7), mk("b", time.Hour, 0.9), mk("c", 3*time.Hour, 0.8)}

	ids := func(q ListQuery) string {
		cp := append([]Match(nil), ms...)
		sort.Slice(cp, func(i, j int) bool { return q.Less(cp[i], cp[j]) })
		out := ""
		for _, m := range cp {
			out += m.ID()
		}
		return out
	}

	if got := ids(ListQuery{SortBy: SortCreatedAt, SortOrder: Desc}); got != "cab" {
		t.Errorf("createdAt desc = %s", got)
	}
	if got := ids(ListQuery{SortBy: SortCreatedAt, SortOrder: Asc}); got != "bac" {
		t.Errorf("createdAt asc = %s", got)
	}
	if got := ids(ListQuery{SortBy: SortSimilarity, SortOrder: Desc}); got != "bca" {
		t.Errorf("similarity desc = %s", got)
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage(nil, 21, ListQuery{Page: 2, Limit: 10})
	if p.Pages != 3 || p.Total != 21 || p.Page != 2 || p.Limit != 10 {
		t.Errorf("unexpected page: %+v", p)
	}
	if NewPage(nil, 0, ListQuery{Page: 1, Limit: 10}).Pages != 0 {
		t.Error("empty result has zero pages")
	}
}

func TestWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	w := Window{Start: &start, End: &end}
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !w.Contains(start) || !w.Contains(end) || w.Contains(end.Add(time.Second)) {
		t.Error("window must be inclusive on both ends")
	}
	bad := Window{Start: &end, End: &start}
	if err := bad.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if !(Window{}).Contains(start) {
		t.Error("open window contains everything")
	}
}
