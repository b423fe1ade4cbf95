package match

import "github.com/kailas-cloud/petmatch/internal/domain/similarity"

// Stats aggregates match counts over a window.
// AverageSimilarity is 0 when no match is in scope.
type Stats struct {
	Total             int
	Pending           int
	Confirmed         int
	Rejected          int
	AverageSimilarity float64
	Low               int
	Medium            int
	High              int
}

// Tally accumulates Stats one match at a time.
type Tally struct {
	stats Stats
	sum   float64
}

// Add counts one match.
func (t *Tally) Add(m Match) {
	t.stats.Total++
	t.sum += m.similarity
	switch m.status {
	case StatusPending:
		t.stats.Pending++
	case StatusConfirmed:
		t.stats.Confirmed++
	case StatusRejected:
		t.stats.Rejected++
	}
	switch m.confidence {
	case similarity.Low:
		t.stats.Low++
	case similarity.Medium:
		t.stats.Medium++
	case similarity.High:
		t.stats.High++
	}
}

// Stats returns the aggregate.
func (t *Tally) Stats() Stats {
	s := t.stats
	if s.Total > 0 {
		s.AverageSimilarity = t.sum / float64(s.Total)
	}
	return s
}
