package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
	"github.com/kailas-cloud/petmatch/internal/domain/similarity"
)

// Status is the lifecycle state of a match.
type Status string

// Match status values. Pending is the only non-terminal state.
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// IsValid checks if the status is one of the supported values.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusRejected
}

// Terminal reports whether no transition is defined out of s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// ParseStatus parses a match status (case-insensitive).
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", domain.Validationf("unknown match status %q", s)
	}
	return st, nil
}

// MaxNotesLength bounds the free-text notes stored with a transition.
const MaxNotesLength = 2000

// Match links a lost pet to a found pet (immutable value object).
type Match struct {
	id          string
	lostPetID   string
	foundPetID  string
	similarity  float64
	confidence  similarity.Confidence
	status      Status
	confirmedAt *time.Time
	rejectedAt  *time.Time
	confirmedBy string
	notes       string
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates a pending match between lost and found. The pets must be a lost/found
// pair with different owners; the score is clamped and classified.
func New(id string, lost, found pet.Pet, score float64, now time.Time) (Match, error) {
	if id == "" {
		return Match{}, domain.Validationf("match id is required")
	}
	if lost.Status != pet.StatusLost || found.Status != pet.StatusFound {
		return Match{}, fmt.Errorf("%w: lost side is %s, found side is %s",
			domain.ErrInvalidPetState, lost.Status, found.Status)
	}
	if lost.ID == found.ID {
		return Match{}, domain.Validationf("a pet cannot match itself")
	}
	if lost.Owner.ID == found.Owner.ID {
		return Match{}, domain.Validationf("both pets belong to the same owner")
	}

	score = similarity.Clamp(score)
	return Match{
		id:         id,
		lostPetID:  lost.ID,
		foundPetID: found.ID,
		similarity: score,
		confidence: similarity.Classify(score),
		status:     StatusPending,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstruct creates a Match without validation (storage hydration).
func Reconstruct(
	id, lostPetID, foundPetID string,
	score float64, conf similarity.Confidence, status Status,
	confirmedAt, rejectedAt *time.Time, confirmedBy, notes string,
	createdAt, updatedAt time.Time,
) Match {
	return Match{
		id:          id,
		lostPetID:   lostPetID,
		foundPetID:  foundPetID,
		similarity:  score,
		confidence:  conf,
		status:      status,
		confirmedAt: confirmedAt,
		rejectedAt:  rejectedAt,
		confirmedBy: confirmedBy,
		notes:       notes,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the match identifier.
func (m Match) ID() string { return m.id }

// LostPetID returns the id of the lost side.
func (m Match) LostPetID() string { return m.lostPetID }

// FoundPetID returns the id of the found side.
func (m Match) FoundPetID() string { return m.foundPetID }

// Similarity returns the score computed at creation.
func (m Match) Similarity() float64 { return m.similarity }

// Confidence returns the tier derived from the score.
func (m Match) Confidence() similarity.Confidence { return m.confidence }

// Status returns the lifecycle state.
func (m Match) Status() Status { return m.status }

// ConfirmedAt is set iff the match is confirmed.
func (m Match) ConfirmedAt() *time.Time { return m.confirmedAt }

// RejectedAt is set iff the match is rejected.
func (m Match) RejectedAt() *time.Time { return m.rejectedAt }

// ConfirmedBy returns the user who confirmed or rejected the match.
func (m Match) ConfirmedBy() string { return m.confirmedBy }

// Notes returns the free text recorded with the transition.
func (m Match) Notes() string { return m.notes }

// CreatedAt returns the creation time.
func (m Match) CreatedAt() time.Time { return m.createdAt }

// UpdatedAt returns the last modification time.
func (m Match) UpdatedAt() time.Time { return m.updatedAt }

// Involves reports whether petID is either side of the match.
func (m Match) Involves(petID string) bool {
	return m.lostPetID == petID || m.foundPetID == petID
}

// Transition moves a pending match to target on behalf of actor.
// Terminal matches fail with domain.ErrAlreadyProcessed; a target other than
// confirmed or rejected fails with domain.ErrValidation. Authorization is
// checked separately by Authorize.
func (m Match) Transition(actor string, target Status, notes string, now time.Time) (Match, error) {
	if target != StatusConfirmed && target != StatusRejected {
		return Match{}, domain.Validationf("target status must be confirmed or rejected, got %q", target)
	}
	if len(notes) > MaxNotesLength {
		return Match{}, domain.Validationf("notes too long (max %d)", MaxNotesLength)
	}
	if m.status != StatusPending {
		return Match{}, fmt.Errorf("%w: match %s is %s", domain.ErrAlreadyProcessed, m.id, m.status)
	}

	next := m
	next.status = target
	next.confirmedBy = actor
	next.notes = notes
	next.updatedAt = now
	at := now
	if target == StatusConfirmed {
		next.confirmedAt = &at
	} else {
		next.rejectedAt = &at
	}
	return next, nil
}

// Authorize allows actor only if they own one of the two pets.
func Authorize(actor string, lost, found pet.Pet) error {
	if actor == "" || (actor != lost.Owner.ID && actor != found.Owner.ID) {
		return fmt.Errorf("%w: user %q owns neither pet", domain.ErrUnauthorized, actor)
	}
	return nil
}

// Details is a match with both pets resolved for display.
type Details struct {
	Match Match
	Lost  pet.Pet
	Found pet.Pet
}
