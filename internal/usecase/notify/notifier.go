package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain/match"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
)

// Summary is what an owner is told about a new match.
type Summary struct {
	MatchID          string    `json:"matchId"`
	Side             string    `json:"side"` // "lost" or "found": the recipient's pet
	PetID            string    `json:"petId"`
	PetName          string    `json:"petName,omitempty"`
	CounterpartPetID string    `json:"counterpartPetId"`
	Similarity       float64   `json:"similarity"`
	Confidence       string    `json:"confidence"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Notifier delivers a match summary to one owner.
type Notifier interface {
	NotifyMatch(ctx context.Context, ownerEmail string, s Summary) error
}

type recipient struct {
	email   string
	summary Summary
}

// recipients builds one summary per pet owner of d.
func recipients(d match.Details) []recipient {
	side := func(name string, own, other pet.Pet) recipient {
		return recipient{
			email: own.Owner.Email,
			summary: Summary{
				MatchID:          d.Match.ID(),
				Side:             name,
				PetID:            own.ID,
				PetName:          own.Name,
				CounterpartPetID: other.ID,
				Similarity:       d.Match.Similarity(),
				Confidence:       string(d.Match.Confidence()),
				CreatedAt:        d.Match.CreatedAt(),
			},
		}
	}
	return []recipient{
		side("lost", d.Lost, d.Found),
		side("found", d.Found, d.Lost),
	}
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyMatch implements Notifier.
func (n *LogNotifier) NotifyMatch(_ context.Context, ownerEmail string, s Summary) error {
	n.logger.Info("Match notification",
		zap.String("to", ownerEmail),
		zap.String("match_id", s.MatchID),
		zap.String("side", s.Side),
		zap.String("pet_id", s.PetID),
		zap.String("counterpart_pet_id", s.CounterpartPetID),
		zap.Float64("similarity", s.Similarity),
		zap.String("confidence", s.Confidence),
	)
	return nil
}
