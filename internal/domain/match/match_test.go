package match

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
	"github.com/kailas-cloud/petmatch/internal/domain/similarity"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func lostPet() pet.Pet {
	return pet.Pet{ID: "L", Owner: pet.Owner{ID: "u1"}, Status: pet.StatusLost}
}

func foundPet() pet.Pet {
	return pet.Pet{ID: "F", Owner: pet.Owner{ID: "u2"}, Status: pet.StatusFound}
}

func mustNew(t *testing.T, score float64) Match {
	t.Helper()
	m, err := New("m1", lostPet(), foundPet(), score, now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNew(t *testing.T) {
	m := mustNew(t, 0.85)
	if m.ID() != "m1" || m.LostPetID() != "L" || m.FoundPetID() != "F" {
		t.Errorf("unexpected identity: %s %s %s", m.ID(), m.LostPetID(), m.FoundPetID())
	}
	if m.Status() != StatusPending {
		t.Errorf("Status() = %q, want pending", m.Status())
	}
	if m.Confidence() != similarity.High {
		t.Errorf("Confidence() = %q, want high", m.Confidence())
	}
	if m.ConfirmedAt() != nil || m.RejectedAt() != nil {
		t.Error("timestamps must be unset on a pending match")
	}
	if !m.CreatedAt().Equal(now) || !m.UpdatedAt().Equal(now) {
		t.Error("lifecycle timestamps must equal creation time")
	}
}

func TestNew_Errors(t *testing.T) {
	sameOwner := foundPet()
	sameOwner.Owner.ID = "u1"
	twoLost := foundPet()
	twoLost.Status = pet.StatusLost
	reunited := foundPet()
	reunited.Status = pet.StatusReunited

	tests := []struct {
		name  string
		id    string
		found pet.Pet
		want  error
	}{
		{"missing id", "", foundPet(), domain.ErrValidation},
		{"same owner", "m", sameOwner, domain.ErrValidation},
		{"two lost", "m", twoLost, domain.ErrInvalidPetState},
		{"reunited", "m", reunited, domain.ErrInvalidPetState},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.id, lostPet(), tc.found, 0.9, now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNew_ClampsScore(t *testing.T) {
	m := mustNew(t, 1.0000003)
	if m.Similarity() != 1 {
		t.Errorf("Similarity() = %v, want 1", m.Similarity())
	}
}

func TestTransition_Confirm(t *testing.T) {
	m := mustNew(t, 0.85)
	later := now.Add(time.Hour)

	got, err := m.Transition("u1", StatusConfirmed, "it's him", later)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status() != StatusConfirmed {
		t.Errorf("Status() = %q", got.Status())
	}
	if got.ConfirmedAt() == nil || !got.ConfirmedAt().Equal(later) {
		t.Errorf("ConfirmedAt() = %v", got.ConfirmedAt())
	}
	if got.RejectedAt() != nil {
		t.Error("RejectedAt must stay unset")
	}
	if got.ConfirmedBy() != "u1" || got.Notes() != "it's him" || !got.UpdatedAt().Equal(later) {
		t.Errorf("unexpected actor/notes/updatedAt: %s %q %v", got.ConfirmedBy(), got.Notes(), got.UpdatedAt())
	}
	if m.Status() != StatusPending {
		t.Error("Transition must not mutate the receiver")
	}
}

func TestTransition_Reject(t *testing.T) {
	got, err := mustNew(t, 0.5).Transition("u2", StatusRejected, "", now)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status() != StatusRejected || got.RejectedAt() == nil || got.ConfirmedAt() != nil {
		t.Errorf("unexpected state: %s %v %v", got.Status(), got.RejectedAt(), got.ConfirmedAt())
	}
	if got.ConfirmedBy() != "u2" {
		t.Errorf("ConfirmedBy() = %q, want u2", got.ConfirmedBy())
	}
}

func TestTransition_Terminal(t *testing.T) {
	confirmed, err := mustNew(t, 0.85).Transition("u1", StatusConfirmed, "", now)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	for _, target := range []Status{StatusRejected, StatusConfirmed} {
		if _, err := confirmed.Transition("u2", target, "", now); !errors.Is(err, domain.ErrAlreadyProcessed) {
			t.Errorf("-> %s: expected ErrAlreadyProcessed, got %v", target, err)
		}
	}
}

func TestTransition_InvalidTarget(t *testing.T) {
	m := mustNew(t, 0.85)
	for _, target := range []Status{StatusPending, Status("archived")} {
		if _, err := m.Transition("u1", target, "", now); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("-> %q: expected ErrValidation, got %v", target, err)
		}
	}
	if _, err := m.Transition("u1", StatusConfirmed, strings.Repeat("x", MaxNotesLength+1), now); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("long notes: expected ErrValidation, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	for _, actor := range []string{"u1", "u2"} {
		if err := Authorize(actor, lostPet(), foundPet()); err != nil {
			t.Errorf("owner %s denied: %v", actor, err)
		}
	}
	for _, actor := range []string{"u3", ""} {
		if err := Authorize(actor, lostPet(), foundPet()); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("actor %q: expected ErrUnauthorized, got %v", actor, err)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus("CONFIRMED"); err != nil || st != StatusConfirmed {
		t.Errorf("ParseStatus = %q, %v", st, err)
	}
	if _, err := ParseStatus("done"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending is not terminal")
	}
	if !StatusConfirmed.Terminal() || !StatusRejected.Terminal() {
		t.Error("confirmed and rejected are terminal")
	}
}
