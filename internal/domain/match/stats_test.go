package match

import (
	"math"
	"testing"
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain/similarity"
)

func TestTally_Empty(t *testing.T) {
	var tl Tally
	s := tl.Stats()
	if s != (Stats{}) {
		t.Errorf("empty stats = %+v, want zero value", s)
	}
	if math.IsNaN(s.AverageSimilarity) {
		t.Error("average must not be NaN")
	}
}

func TestTally(t *testing.T) {
	t0 := time.Now()
	mk := func(score float64, st Status) Match {
		return Reconstruct("m", "L", "F", score, similarity.Classify(score), st, nil, nil, "", "", t0, t0)
	}

	var tl Tally
	tl.Add(mk(0.9, StatusPending))
	tl.Add(mk(0.75, StatusConfirmed))
	tl.Add(mk(0.6, StatusRejected))
	tl.Add(mk(0.95, StatusConfirmed))

	s := tl.Stats()
	if s.Total != 4 || s.Pending != 1 || s.Confirmed != 2 || s.Rejected != 1 {
		t.Errorf("status counts = %+v", s)
	}
	if s.High != 2 || s.Medium != 1 || s.Low != 1 {
		t.Errorf("confidence counts = %+v", s)
	}
	if math.Abs(s.AverageSimilarity-0.8) > 1e-9 {
		t.Errorf("AverageSimilarity = %v, want 0.8", s.AverageSimilarity)
	}
}
