package pet

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain/geo"
)

// Status is the listing state of a pet report.
type Status string

// Pet status values.
const (
	StatusLost     Status = "lost"
	StatusFound    Status = "found"
	StatusReunited Status = "reunited"
)

// IsValid checks if the status is one of the supported values.
func (s Status) IsValid() bool {
	return s == StatusLost || s == StatusFound || s == StatusReunited
}

// Matchable reports whether a pet in this status takes part in matching.
func (s Status) Matchable() bool {
	return s == StatusLost || s == StatusFound
}

// Opposite returns the counterpart status (lost<->found).
// Reunited has no counterpart and returns false.
func (s Status) Opposite() (Status, bool) {
	switch s {
	case StatusLost:
		return StatusFound, true
	case StatusFound:
		return StatusLost, true
	default:
		return "", false
	}
}

// ParseStatus parses a status string (case-insensitive).
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("unknown pet status %q", s)
	}
	return st, nil
}

// Owner is the contact record of the user who reported a pet.
type Owner struct {
	ID    string
	Email string
	Name  string
}

// Features is the output of the feature provider for one pet.
type Features struct {
	Vector        []float32
	BreedEstimate string
	Confidence    float64
	Model         string
	ExtractedAt   time.Time
}

// Empty reports whether no vector was extracted.
func (f *Features) Empty() bool { return f == nil || len(f.Vector) == 0 }

// Pet is the read model of a lost or found report as seen by the matching engine.
type Pet struct {
	ID          string
	Owner       Owner
	Name        string
	Species     string
	Breed       string
	Color       string
	Size        string
	Description string
	Status      Status
	Location    *geo.Point
	ImageURLs   []string
	Features    *Features
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Scoreable reports whether the pet carries a feature vector.
func (p *Pet) Scoreable() bool { return !p.Features.Empty() }

// Descriptor renders the pet attributes the feature provider analyzes.
// Equal descriptors produce equal features, so the string doubles as a cache key source.
func (p *Pet) Descriptor() string {
	var b strings.Builder
	field := func(name, val string) {
		val = strings.TrimSpace(val)
		if val == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(val)
	}
	field("species", p.Species)
	field("breed", p.Breed)
	field("color", p.Color)
	field("size", p.Size)
	field("description", p.Description)
	for _, u := range p.ImageURLs {
		field("image", u)
	}
	return b.String()
}

// Position is a pet's place in (created_at, id) order.
type Position struct {
	CreatedAt time.Time
	ID        string
}

// PositionOf returns the position of p.
func PositionOf(p Pet) Position { return Position{CreatedAt: p.CreatedAt, ID: p.ID} }

// RecentQuery selects lost and found pets created at or after Since, oldest
// first, resuming strictly after After when set.
type RecentQuery struct {
	Since time.Time
	After *Position
	Limit int
}

// Includes reports whether p belongs to the query result, ignoring Limit.
func (q RecentQuery) Includes(p Pet) bool {
	if !p.Status.Matchable() || p.CreatedAt.Before(q.Since) {
		return false
	}
	if q.After == nil {
		return true
	}
	if !p.CreatedAt.Equal(q.After.CreatedAt) {
		return p.CreatedAt.After(q.After.CreatedAt)
	}
	return p.ID > q.After.ID
}
