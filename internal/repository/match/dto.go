package match

import (
	"time"

	dommatch "github.com/kailas-cloud/petmatch/internal/domain/match"
	"github.com/kailas-cloud/petmatch/internal/domain/similarity"
)

const selectColumns = `id, lost_pet_id, found_pet_id, similarity, confidence, status,
	confirmed_at, rejected_at, confirmed_by, notes, created_at, updated_at`

// row mirrors selectColumns.
type row struct {
	ID, LostPetID, FoundPetID string
	Similarity                float64
	Confidence, Status        string
	ConfirmedAt, RejectedAt   *time.Time
	ConfirmedBy, Notes        string
	CreatedAt, UpdatedAt      time.Time
}

func (r *row) dest() []any {
	return []any{
		&r.ID, &r.LostPetID, &r.FoundPetID, &r.Similarity, &r.Confidence, &r.Status,
		&r.ConfirmedAt, &r.RejectedAt, &r.ConfirmedBy, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	}
}

func (r *row) toDomain() dommatch.Match {
	return dommatch.Reconstruct(
		r.ID, r.LostPetID, r.FoundPetID,
		r.Similarity, similarity.Confidence(r.Confidence), dommatch.Status(r.Status),
		r.ConfirmedAt, r.RejectedAt, r.ConfirmedBy, r.Notes,
		r.CreatedAt, r.UpdatedAt,
	)
}

// sortColumns maps list sort fields to columns.
var sortColumns = map[dommatch.SortField]string{
	dommatch.SortCreatedAt:  "created_at",
	dommatch.SortUpdatedAt:  "updated_at",
	dommatch.SortSimilarity: "similarity",
}
