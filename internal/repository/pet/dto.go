package pet

import (
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain/geo"
	dompet "github.com/kailas-cloud/petmatch/internal/domain/pet"
)

const selectColumns = `p.id, p.owner_id, u.email, u.name,
	p.name, p.species, p.breed, p.color, p.size, p.description, p.status,
	p.latitude, p.longitude, p.image_urls,
	p.feature_vector, p.breed_estimate, p.breed_confidence, p.features_model, p.features_extracted_at,
	p.created_at, p.updated_at`

const fromClause = `FROM pets p JOIN users u ON u.id = p.owner_id`

// row mirrors selectColumns.
type row struct {
	ID, OwnerID, OwnerEmail, OwnerName string
	Name, Species, Breed, Color, Size  string
	Description, Status                string
	Latitude, Longitude                *float64
	ImageURLs                          []string
	Vector                             []float32
	BreedEstimate                      string
	BreedConfidence                    float64
	FeaturesModel                      string
	FeaturesExtractedAt                *time.Time
	CreatedAt, UpdatedAt               time.Time
}

func (r *row) dest() []any {
	return []any{
		&r.ID, &r.OwnerID, &r.OwnerEmail, &r.OwnerName,
		&r.Name, &r.Species, &r.Breed, &r.Color, &r.Size, &r.Description, &r.Status,
		&r.Latitude, &r.Longitude, &r.ImageURLs,
		&r.Vector, &r.BreedEstimate, &r.BreedConfidence, &r.FeaturesModel, &r.FeaturesExtractedAt,
		&r.CreatedAt, &r.UpdatedAt,
	}
}

func (r *row) toDomain() dompet.Pet {
	p := dompet.Pet{
		ID:          r.ID,
		Owner:       dompet.Owner{ID: r.OwnerID, Email: r.OwnerEmail, Name: r.OwnerName},
		Name:        r.Name,
		Species:     r.Species,
		Breed:       r.Breed,
		Color:       r.Color,
		Size:        r.Size,
		Description: r.Description,
		Status:      dompet.Status(r.Status),
		ImageURLs:   r.ImageURLs,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Latitude != nil && r.Longitude != nil {
		p.Location = &geo.Point{Lat: *r.Latitude, Lon: *r.Longitude}
	}
	if len(r.Vector) > 0 {
		f := &dompet.Features{
			Vector:        r.Vector,
			BreedEstimate: r.BreedEstimate,
			Confidence:    r.BreedConfidence,
			Model:         r.FeaturesModel,
		}
		if r.FeaturesExtractedAt != nil {
			f.ExtractedAt = *r.FeaturesExtractedAt
		}
		p.Features = f
	}
	return p
}
