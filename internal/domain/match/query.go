package match

import (
	"time"

	"github.com/kailas-cloud/petmatch/internal/domain"
)

// SortField orders user match listings.
type SortField string

// Sort fields.
const (
	SortCreatedAt  SortField = "createdAt"
	SortUpdatedAt  SortField = "updatedAt"
	SortSimilarity SortField = "similarity"
)

// SortOrder is asc or desc.
type SortOrder string

// Sort orders.
const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Listing defaults.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// ListQuery selects matches involving any pet owned by UserID.
type ListQuery struct {
	UserID    string
	Status    Status
	Page      int
	Limit     int
	SortBy    SortField
	SortOrder SortOrder
}

// ApplyDefaults fills unset fields: page 1, the given limit, createdAt desc.
func (q *ListQuery) ApplyDefaults(limit int) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = limit
	}
	if q.SortBy == "" {
		q.SortBy = SortCreatedAt
	}
	if q.SortOrder == "" {
		q.SortOrder = Desc
	}
}

// Validate checks the query after defaults are applied.
func (q ListQuery) Validate() error {
	if q.UserID == "" {
		return domain.Validationf("user id is required")
	}
	if q.Status != "" && !q.Status.IsValid() {
		return domain.Validationf("unknown match status %q", q.Status)
	}
	if q.Page < 1 {
		return domain.Validationf("page must be >= 1")
	}
	if q.Limit < 1 || q.Limit > MaxPageLimit {
		return domain.Validationf("limit must be in [1,%d]", MaxPageLimit)
	}
	switch q.SortBy {
	case SortCreatedAt, SortUpdatedAt, SortSimilarity:
	default:
		return domain.Validationf("unknown sort field %q", q.SortBy)
	}
	if q.SortOrder != Asc && q.SortOrder != Desc {
		return domain.Validationf("sort order must be asc or desc")
	}
	return nil
}

// Offset returns the number of rows to skip.
func (q ListQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Less orders a before b according to the query sort. Ties break on id.
func (q ListQuery) Less(a, b Match) bool {
	var c int
	switch q.SortBy {
	case SortUpdatedAt:
		c = a.updatedAt.Compare(b.updatedAt)
	case SortSimilarity:
		switch {
		case a.similarity < b.similarity:
			c = -1
		case a.similarity > b.similarity:
			c = 1
		}
	default:
		c = a.createdAt.Compare(b.createdAt)
	}
	if c == 0 {
		if a.id == b.id {
			return false
		}
		c = -1
		if a.id > b.id {
			c = 1
		}
	}
	if q.SortOrder == Asc {
		return c < 0
	}
	return c > 0
}

// Page is one page of resolved matches.
type Page struct {
	Items []Details
	Total int
	Page  int
	Limit int
	Pages int
}

// NewPage computes the page count for total rows.
func NewPage(items []Details, total int, q ListQuery) Page {
	pages := 0
	if q.Limit > 0 {
		pages = (total + q.Limit - 1) / q.Limit
	}
	return Page{Items: items, Total: total, Page: q.Page, Limit: q.Limit, Pages: pages}
}

// Window restricts statistics to matches created in [Start, End].
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Validate checks the window bounds.
func (w Window) Validate() error {
	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		return domain.Validationf("endDate is before startDate")
	}
	return nil
}

// Contains reports whether t lies within the window (inclusive).
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}
