package similarity

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/petmatch/internal/domain"
)

// Confidence is the tier derived from a similarity score.
type Confidence string

// Confidence tiers.
const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

// Tier thresholds.
const (
	HighThreshold   = 0.85
	MediumThreshold = 0.70
)

// IsValid checks if the tier is one of the supported values.
func (c Confidence) IsValid() bool {
	return c == Low || c == Medium || c == High
}

// Classify maps a similarity score to its confidence tier.
func Classify(score float64) Confidence {
	switch {
	case score >= HighThreshold:
		return High
	case score >= MediumThreshold:
		return Medium
	default:
		return Low
	}
}

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// Vectors of different length fail with *domain.DimensionMismatchError.
// A zero-magnitude vector scores 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &domain.DimensionMismatchError{Left: len(a), Right: len(b)}
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vector", domain.ErrVectorDimMismatch)
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}

	return Clamp(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

// Clamp bounds s to [0,1]; NaN becomes 0.
func Clamp(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
