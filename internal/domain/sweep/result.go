package sweep

import (
	"errors"
	"time"
)

// ItemStatus is the processing outcome of a single pet in a sweep.
type ItemStatus string

// Sweep item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one pet during a sweep.
type Result struct {
	petID      string
	status     ItemStatus
	created    int
	duplicates int
	err        error
}

// NewOK creates a successful result.
func NewOK(petID string, created, duplicates int) Result {
	return Result{petID: petID, status: StatusOK, created: created, duplicates: duplicates}
}

// NewError creates a failed result. Matches created before the failure still count.
func NewError(petID string, created, duplicates int, err error) Result {
	return Result{petID: petID, status: StatusError, created: created, duplicates: duplicates, err: err}
}

// PetID returns the processed pet.
func (r Result) PetID() string { return r.petID }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Created returns the number of matches created for the pet.
func (r Result) Created() int { return r.created }

// Duplicates returns the number of pairs that already had a match.
func (r Result) Duplicates() int { return r.duplicates }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// PetError is a recorded per-pet failure.
type PetError struct {
	PetID   string `json:"petId"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// Summary reports one sweep run.
type Summary struct {
	RunID          string     `json:"runId"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     time.Time  `json:"finishedAt"`
	PetsProcessed  int        `json:"petsProcessed"`
	MatchesCreated int        `json:"matchesCreated"`
	Duplicates     int        `json:"duplicates"`
	Errors         []PetError `json:"errors"`
	// Truncated is set when the run stopped early on its time or pet cap.
	Truncated bool `json:"truncated"`
}

// NewSummary starts a summary for a run.
func NewSummary(runID string, startedAt time.Time) *Summary {
	return &Summary{RunID: runID, StartedAt: startedAt, Errors: []PetError{}}
}

// Record folds a per-pet result into the summary.
func (s *Summary) Record(r Result) {
	s.PetsProcessed++
	s.MatchesCreated += r.created
	s.Duplicates += r.duplicates
	if r.status == StatusError {
		s.Errors = append(s.Errors, PetError{PetID: r.petID, Message: r.err.Error(), Err: r.err})
	}
}

// Finish stamps the end time.
func (s *Summary) Finish(at time.Time) { s.FinishedAt = at }

// Duration returns the run length.
func (s *Summary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }

// ErrorsMatching counts recorded errors that match target.
func (s *Summary) ErrorsMatching(target error) int {
	n := 0
	for _, e := range s.Errors {
		if errors.Is(e.Err, target) {
			n++
		}
	}
	return n
}
