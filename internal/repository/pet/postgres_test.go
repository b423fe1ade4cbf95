package pet

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/petmatch/internal/domain/candidate"
	"github.com/kailas-cloud/petmatch/internal/domain/geo"
	dompet "github.com/kailas-cloud/petmatch/internal/domain/pet"
)

func TestBuildCandidateQuery_Minimal(t *testing.T) {
	sql, args := buildCandidateQuery(candidate.Query{
		Status:       dompet.StatusFound,
		ExcludeOwner: "u1",
		ExcludePetID: "L1",
	})
	for _, want := range []string{
		"p.status = $1",
		"p.owner_id <> $2",
		"p.id <> $3",
		"cardinality(p.feature_vector) > 0",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("sql missing %q:\n%s", want, sql)
		}
	}
	if strings.Contains(sql, "LIMIT") || strings.Contains(sql, "latitude BETWEEN") {
		t.Errorf("unexpected optional clauses:\n%s", sql)
	}
	if len(args) != 3 || args[0] != "found" {
		t.Errorf("args = %v", args)
	}
}

func TestBuildCandidateQuery_AllFilters(t *testing.T) {
	subject := dompet.Pet{
		ID:        "L1",
		Owner:     dompet.Owner{ID: "u1"},
		Status:    dompet.StatusLost,
		Location:  &geo.Point{Lat: 52.52, Lon: 13.405},
		CreatedAt: t0,
	}
	radius := 10.0
	days := 3
	q, err := candidate.BuildQuery(subject, candidate.Options{MaxDistanceKm: &radius, MaxAgeDays: &days}, 200)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}

	sql, args := buildCandidateQuery(q)
	for _, want := range []string{
		"p.created_at >= $4",
		"p.created_at <= $5",
		"p.latitude BETWEEN $6 AND $7",
		"p.longitude BETWEEN $8 AND $9",
		"LIMIT $10",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("sql missing %q:\n%s", want, sql)
		}
	}
	if len(args) != 10 || args[9] != 200 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildCandidateQuery_UnboundedLongitude(t *testing.T) {
	box := geo.BoundingBox(geo.Point{Lat: 0, Lon: 179.99}, 25)
	sql, _ := buildCandidateQuery(candidate.Query{Status: dompet.StatusLost, Box: &box})
	if !strings.Contains(sql, "p.latitude BETWEEN") {
		t.Error("latitude bounds must always apply")
	}
	if strings.Contains(sql, "p.longitude BETWEEN") {
		t.Error("longitude bounds must be dropped across the antimeridian")
	}
}

func TestBuildCandidateQuery_Cursor(t *testing.T) {
	sql, args := buildCandidateQuery(candidate.Query{
		Status: dompet.StatusFound,
		After:  &candidate.Cursor{CreatedAt: t0, ID: "F9"},
		Limit:  50,
	})
	for _, want := range []string{
		"(p.created_at < $4 OR (p.created_at = $4 AND p.id > $5))",
		"ORDER BY p.created_at DESC, p.id",
		"LIMIT $6",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("sql missing %q:\n%s", want, sql)
		}
	}
	if len(args) != 6 || args[4] != "F9" || args[5] != 50 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildRecentQuery(t *testing.T) {
	sql, args := buildRecentQuery(dompet.RecentQuery{Since: t0, Limit: 10})
	if strings.Contains(sql, "p.id >") || !strings.Contains(sql, "LIMIT $2") {
		t.Errorf("unexpected sql:\n%s", sql)
	}
	if len(args) != 2 || args[1] != 10 {
		t.Errorf("args = %v", args)
	}

	sql, args = buildRecentQuery(dompet.RecentQuery{
		Since: t0,
		After: &dompet.Position{CreatedAt: t0, ID: "P7"},
		Limit: 10,
	})
	for _, want := range []string{
		"(p.created_at > $2 OR (p.created_at = $2 AND p.id > $3))",
		"ORDER BY p.created_at, p.id",
		"LIMIT $4",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("sql missing %q:\n%s", want, sql)
		}
	}
	if len(args) != 4 || args[2] != "P7" || args[3] != 10 {
		t.Errorf("args = %v", args)
	}
}
