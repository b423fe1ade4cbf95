package candidate

import (
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/geo"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
	"github.com/kailas-cloud/petmatch/internal/domain/similarity"
)

// Defaults for candidate search.
const (
	DefaultMinSimilarity = 0.6
	DefaultLimit         = 20
	MaxLimit             = 100
)

// Options tunes a candidate search. Nil fields fall back to defaults;
// MaxDistanceKm and MaxAgeDays are unbounded when nil.
type Options struct {
	MinSimilarity *float64
	MaxDistanceKm *float64
	MaxAgeDays    *int
	Limit         int
}

// ApplyDefaults fills unset fields.
func (o *Options) ApplyDefaults(minSimilarity float64, limit int) {
	if o.MinSimilarity == nil {
		v := minSimilarity
		o.MinSimilarity = &v
	}
	if o.Limit == 0 {
		o.Limit = limit
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.MinSimilarity != nil && (*o.MinSimilarity < 0 || *o.MinSimilarity > 1) {
		return domain.Validationf("minSimilarity must be in [0,1], got %v", *o.MinSimilarity)
	}
	if o.MaxDistanceKm != nil && *o.MaxDistanceKm <= 0 {
		return domain.Validationf("maxDistanceKm must be positive")
	}
	if o.MaxAgeDays != nil && *o.MaxAgeDays < 0 {
		return domain.Validationf("maxAgeDays must not be negative")
	}
	if o.Limit < 0 || o.Limit > MaxLimit {
		return domain.Validationf("limit must be in [1,%d]", MaxLimit)
	}
	return nil
}

// Threshold returns the effective minimum similarity.
func (o Options) Threshold() float64 {
	if o.MinSimilarity == nil {
		return DefaultMinSimilarity
	}
	return *o.MinSimilarity
}

func (o Options) window() (time.Duration, bool) {
	if o.MaxAgeDays == nil {
		return 0, false
	}
	return time.Duration(*o.MaxAgeDays) * 24 * time.Hour, true
}

// Query is the storage-side prefilter derived from a subject pet. It narrows the
// candidate set cheaply; Accept re-applies the exact rules afterwards.
//
// Results are ordered by (created_at DESC, id ASC). Limit is a page size, not a
// cap on the pool: callers walk every page with Next.
type Query struct {
	Status       pet.Status
	ExcludeOwner string
	ExcludePetID string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Box          *geo.Box
	After        *Cursor
	Limit        int
}

// Cursor is a keyset position in candidate order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorAt returns the position of p.
func CursorAt(p pet.Pet) Cursor { return Cursor{CreatedAt: p.CreatedAt, ID: p.ID} }

// Precedes reports whether the cursor sorts strictly before p.
func (c Cursor) Precedes(p pet.Pet) bool {
	if !p.CreatedAt.Equal(c.CreatedAt) {
		return p.CreatedAt.Before(c.CreatedAt)
	}
	return p.ID > c.ID
}

// Next returns the query for the page after page. It reports false once page
// was the last one.
func (q Query) Next(page []pet.Pet) (Query, bool) {
	if q.Limit <= 0 || len(page) < q.Limit {
		return q, false
	}
	c := CursorAt(page[len(page)-1])
	q.After = &c
	return q, true
}

// BuildQuery derives the prefilter for subject. A subject that is neither lost nor
// found has no counterpart and fails with domain.ErrInvalidPetState.
func BuildQuery(subject pet.Pet, opts Options, pageSize int) (Query, error) {
	want, ok := subject.Status.Opposite()
	if !ok {
		return Query{}, fmt.Errorf("%w: pet %s is %s", domain.ErrInvalidPetState, subject.ID, subject.Status)
	}

	q := Query{
		Status:       want,
		ExcludeOwner: subject.Owner.ID,
		ExcludePetID: subject.ID,
		Limit:        pageSize,
	}
	if w, ok := opts.window(); ok {
		from := subject.CreatedAt.Add(-w)
		to := subject.CreatedAt.Add(w)
		q.CreatedFrom, q.CreatedTo = &from, &to
	}
	if opts.MaxDistanceKm != nil && subject.Location != nil {
		box := geo.BoundingBox(*subject.Location, *opts.MaxDistanceKm)
		q.Box = &box
	}
	return q, nil
}

// Accept applies the exact filter rules to a single candidate: opposite status,
// different owner, both scoreable, within distance and within the age window.
func Accept(subject, cand pet.Pet, opts Options) bool {
	want, ok := subject.Status.Opposite()
	if !ok || cand.Status != want {
		return false
	}
	if cand.ID == subject.ID || cand.Owner.ID == subject.Owner.ID {
		return false
	}
	if !subject.Scoreable() || !cand.Scoreable() {
		return false
	}
	if opts.MaxDistanceKm != nil {
		d, ok := Distance(subject, cand)
		if !ok || d > *opts.MaxDistanceKm {
			return false
		}
	}
	if w, ok := opts.window(); ok {
		delta := cand.CreatedAt.Sub(subject.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta > w {
			return false
		}
	}
	return true
}

// Distance returns the great-circle distance between two pets, if both are located.
func Distance(a, b pet.Pet) (float64, bool) {
	if a.Location == nil || b.Location == nil {
		return 0, false
	}
	return geo.HaversineKm(*a.Location, *b.Location), true
}

// Candidate is a scored counterpart.
type Candidate struct {
	Pet        pet.Pet
	Similarity float64
	Confidence similarity.Confidence
	DistanceKm *float64
}

// Rank filters, scores and orders candidates for subject. Candidates below the
// threshold are dropped; the rest are sorted by similarity descending and cut to
// opts.Limit (when positive). Candidates whose vectors cannot be compared with the
// subject's are skipped and their ids returned.
func Rank(subject pet.Pet, pool []pet.Pet, opts Options) (ranked []Candidate, skipped []string) {
	if !subject.Scoreable() {
		return nil, nil
	}
	threshold := opts.Threshold()

	out := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if !Accept(subject, c, opts) {
			continue
		}
		s, err := similarity.Cosine(subject.Features.Vector, c.Features.Vector)
		if err != nil {
			skipped = append(skipped, c.ID)
			continue
		}
		if s < threshold {
			continue
		}
		cand := Candidate{Pet: c, Similarity: s, Confidence: similarity.Classify(s)}
		if d, ok := Distance(subject, c); ok {
			cand.DistanceKm = &d
		}
		out = append(out, cand)
	}
	return Merge(nil, out, opts.Limit), skipped
}

// Merge combines two ranked lists into one in rank order, cut to limit when
// positive. It keeps a bounded top-K across pages of candidates.
func Merge(best, more []Candidate, limit int) []Candidate {
	out := make([]Candidate, 0, len(best)+len(more))
	out = append(out, best...)
	out = append(out, more...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if !out[i].Pet.CreatedAt.Equal(out[j].Pet.CreatedAt) {
			return out[i].Pet.CreatedAt.Before(out[j].Pet.CreatedAt)
		}
		return out[i].Pet.ID < out[j].Pet.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Pair orients two pets into (lost, found). Any other combination fails with
// domain.ErrInvalidPetState.
func Pair(a, b pet.Pet) (lost, found pet.Pet, err error) {
	switch {
	case a.Status == pet.StatusLost && b.Status == pet.StatusFound:
		return a, b, nil
	case a.Status == pet.StatusFound && b.Status == pet.StatusLost:
		return b, a, nil
	default:
		return pet.Pet{}, pet.Pet{}, fmt.Errorf("%w: cannot pair %s pet with %s pet",
			domain.ErrInvalidPetState, a.Status, b.Status)
	}
}
