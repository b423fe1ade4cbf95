package chi

import (
	"net/url"
	"strconv"
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/candidate"
	"github.com/kailas-cloud/petmatch/internal/domain/match"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
	"github.com/kailas-cloud/petmatch/internal/usecase/health"
)

// LocationDTO is a WGS84 coordinate.
type LocationDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PetDTO is the public view of a pet. Owner contact details are not exposed.
type PetDTO struct {
	ID            string       `json:"id"`
	OwnerID       string       `json:"ownerId"`
	Name          string       `json:"name,omitempty"`
	Species       string       `json:"species,omitempty"`
	Breed         string       `json:"breed,omitempty"`
	BreedEstimate string       `json:"breedEstimate,omitempty"`
	Color         string       `json:"color,omitempty"`
	Size          string       `json:"size,omitempty"`
	Status        string       `json:"status"`
	Location      *LocationDTO `json:"location,omitempty"`
	ImageURLs     []string     `json:"imageUrls,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// CandidateDTO is one potential match.
type CandidateDTO struct {
	Pet        PetDTO   `json:"pet"`
	Similarity float64  `json:"similarity"`
	Confidence string   `json:"confidence"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// CandidateListResponse wraps potential matches.
type CandidateListResponse struct {
	Items []CandidateDTO `json:"items"`
	Count int            `json:"count"`
}

// MatchDTO is a match with both pets resolved.
type MatchDTO struct {
	ID          string     `json:"id"`
	LostPet     PetDTO     `json:"lostPet"`
	FoundPet    PetDTO     `json:"foundPet"`
	Similarity  float64    `json:"similarity"`
	Confidence  string     `json:"confidence"`
	Status      string     `json:"status"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	ConfirmedBy string     `json:"confirmedBy,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// MatchPageResponse is one page of matches.
type MatchPageResponse struct {
	Items []MatchDTO `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Pages int        `json:"pages"`
}

// ConfidenceBreakdown counts matches per confidence tier.
type ConfidenceBreakdown struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// StatsResponse reports match statistics.
type StatsResponse struct {
	Total             int                 `json:"total"`
	Pending           int                 `json:"pending"`
	Confirmed         int                 `json:"confirmed"`
	Rejected          int                 `json:"rejected"`
	AverageSimilarity float64             `json:"averageSimilarity"`
	Confidence        ConfidenceBreakdown `json:"confidence"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// CreateMatchRequest is the body of POST /matches.
type CreateMatchRequest struct {
	LostPetID  string `json:"lostPetId"`
	FoundPetID string `json:"foundPetId"`
}

// UpdateStatusRequest is the body of PATCH /matches/{matchID}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// RunSweepRequest is the optional body of POST /admin/matching/run.
type RunSweepRequest struct {
	MaxDays int `json:"maxDays"`
	MaxPets int `json:"maxPets"`
}

func petToDTO(p pet.Pet) PetDTO {
	out := PetDTO{
		ID:        p.ID,
		OwnerID:   p.Owner.ID,
		Name:      p.Name,
		Species:   p.Species,
		Breed:     p.Breed,
		Color:     p.Color,
		Size:      p.Size,
		Status:    string(p.Status),
		ImageURLs: p.ImageURLs,
		CreatedAt: p.CreatedAt,
	}
	if p.Location != nil {
		out.Location = &LocationDTO{Lat: p.Location.Lat, Lon: p.Location.Lon}
	}
	if p.Features != nil {
		out.BreedEstimate = p.Features.BreedEstimate
	}
	return out
}

func candidatesToDTO(cs []candidate.Candidate) CandidateListResponse {
	items := make([]CandidateDTO, 0, len(cs))
	for _, c := range cs {
		items = append(items, CandidateDTO{
			Pet:        petToDTO(c.Pet),
			Similarity: c.Similarity,
			Confidence: string(c.Confidence),
			DistanceKm: c.DistanceKm,
		})
	}
	return CandidateListResponse{Items: items, Count: len(items)}
}

func matchToDTO(d match.Details) MatchDTO {
	m := d.Match
	return MatchDTO{
		ID:          m.ID(),
		LostPet:     petToDTO(d.Lost),
		FoundPet:    petToDTO(d.Found),
		Similarity:  m.Similarity(),
		Confidence:  string(m.Confidence()),
		Status:      string(m.Status()),
		ConfirmedAt: m.ConfirmedAt(),
		RejectedAt:  m.RejectedAt(),
		ConfirmedBy: m.ConfirmedBy(),
		Notes:       m.Notes(),
		CreatedAt:   m.CreatedAt(),
		UpdatedAt:   m.UpdatedAt(),
	}
}

func pageToDTO(p match.Page) MatchPageResponse {
	items := make([]MatchDTO, 0, len(p.Items))
	for _, d := range p.Items {
		items = append(items, matchToDTO(d))
	}
	return MatchPageResponse{Items: items, Total: p.Total, Page: p.Page, Limit: p.Limit, Pages: p.Pages}
}

func statsToDTO(s match.Stats) StatsResponse {
	return StatsResponse{
		Total:             s.Total,
		Pending:           s.Pending,
		Confirmed:         s.Confirmed,
		Rejected:          s.Rejected,
		AverageSimilarity: s.AverageSimilarity,
		Confidence:        ConfidenceBreakdown{Low: s.Low, Medium: s.Medium, High: s.High},
	}
}

func healthToDTO(r health.Report) HealthResponse {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	return HealthResponse{Status: string(r.Status), Checks: checks}
}

// candidateOptions parses minSimilarity, maxDistanceKm, maxAgeDays and limit.
func candidateOptions(q url.Values) (candidate.Options, error) {
	var opts candidate.Options
	var err error
	if opts.MinSimilarity, err = floatParam(q, "minSimilarity"); err != nil {
		return opts, err
	}
	if opts.MaxDistanceKm, err = floatParam(q, "maxDistanceKm"); err != nil {
		return opts, err
	}
	if opts.MaxAgeDays, err = intParam(q, "maxAgeDays"); err != nil {
		return opts, err
	}
	limit, err := intParam(q, "limit")
	if err != nil {
		return opts, err
	}
	if limit != nil {
		if *limit < 1 {
			return opts, domain.Validationf("limit must be positive")
		}
		opts.Limit = *limit
	}
	return opts, nil
}

// listQuery parses status, page, limit, sortBy and sortOrder for userID.
func listQuery(q url.Values, userID string) (match.ListQuery, error) {
	lq := match.ListQuery{
		UserID:    userID,
		SortBy:    match.SortField(q.Get("sortBy")),
		SortOrder: match.SortOrder(q.Get("sortOrder")),
	}
	if s := q.Get("status"); s != "" {
		st, err := match.ParseStatus(s)
		if err != nil {
			return lq, err
		}
		lq.Status = st
	}
	for name, dst := range map[string]*int{"page": &lq.Page, "limit": &lq.Limit} {
		v, err := intParam(q, name)
		if err != nil {
			return lq, err
		}
		if v != nil {
			if *v < 1 {
				return lq, domain.Validationf("%s must be positive", name)
			}
			*dst = *v
		}
	}
	return lq, nil
}

// statsWindow parses startDate and endDate as RFC 3339 timestamps or YYYY-MM-DD dates.
// A bare endDate covers the whole day.
func statsWindow(q url.Values) (match.Window, error) {
	var w match.Window
	var err error
	if w.Start, err = dateParam(q, "startDate", false); err != nil {
		return w, err
	}
	if w.End, err = dateParam(q, "endDate", true); err != nil {
		return w, err
	}
	return w, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil //nolint:nilnil // absent parameter
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, domain.Validationf("%s must be a number", name)
	}
	return &v, nil
}

func intParam(q url.Values, name string) (*int, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil //nolint:nilnil // absent parameter
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, domain.Validationf("%s must be an integer", name)
	}
	return &v, nil
}

func dateParam(q url.Values, name string, endOfDay bool) (*time.Time, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil //nolint:nilnil // absent parameter
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, domain.Validationf("%s must be RFC 3339 or YYYY-MM-DD", name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
