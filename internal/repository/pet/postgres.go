package pet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/petmatch/internal/db"
	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/candidate"
	dompet "github.com/kailas-cloud/petmatch/internal/domain/pet"
)

// querier is the consumer interface over a pgx pool (ISP).
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres implements the pet repository over the pets and users tables.
type Postgres struct {
	q querier
}

// NewPostgres creates a Postgres pet repository.
func NewPostgres(q querier) *Postgres {
	return &Postgres{q: q}
}

// GetByID loads a pet with its owner contact.
func (r *Postgres) GetByID(ctx context.Context, id string) (dompet.Pet, error) {
	var rw row
	err := r.q.QueryRow(ctx, `SELECT `+selectColumns+` `+fromClause+` WHERE p.id = $1`, id).Scan(rw.dest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return dompet.Pet{}, fmt.Errorf("%w: %s", domain.ErrPetNotFound, id)
	}
	if err != nil {
		return dompet.Pet{}, &db.Error{Op: db.OpQuery, Err: err}
	}
	return rw.toDomain(), nil
}

// GetMany loads pets by id. Missing ids are absent from the result.
func (r *Postgres) GetMany(ctx context.Context, ids []string) (map[string]dompet.Pet, error) {
	if len(ids) == 0 {
		return map[string]dompet.Pet{}, nil
	}
	pets, err := r.query(ctx, `SELECT `+selectColumns+` `+fromClause+` WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]dompet.Pet, len(pets))
	for _, p := range pets {
		out[p.ID] = p
	}
	return out, nil
}

// IDsByOwner returns the ids of every pet reported by ownerID.
func (r *Postgres) IDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM pets WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return ids, nil
}

// FindCandidates runs the storage-side candidate prefilter and returns one page
// in (created_at DESC, id) order.
func (r *Postgres) FindCandidates(ctx context.Context, q candidate.Query) ([]dompet.Pet, error) {
	sql, args := buildCandidateQuery(q)
	return r.query(ctx, sql, args...)
}

// ListRecent returns the pets selected by q, oldest first.
func (r *Postgres) ListRecent(ctx context.Context, q dompet.RecentQuery) ([]dompet.Pet, error) {
	sql, args := buildRecentQuery(q)
	return r.query(ctx, sql, args...)
}

// SaveFeatures stores the feature record on a pet.
func (r *Postgres) SaveFeatures(ctx context.Context, id string, f dompet.Features) error {
	tag, err := r.q.Exec(ctx, `UPDATE pets SET
		feature_vector = $2, breed_estimate = $3, breed_confidence = $4,
		features_model = $5, features_extracted_at = $6, updated_at = now()
	WHERE id = $1`,
		id, f.Vector, f.BreedEstimate, f.Confidence, f.Model, f.ExtractedAt)
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPetNotFound, id)
	}
	return nil
}

func (r *Postgres) query(ctx context.Context, sql string, args ...any) ([]dompet.Pet, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	var out []dompet.Pet
	for rows.Next() {
		var rw row
		if err := rows.Scan(rw.dest()...); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: err}
		}
		out = append(out, rw.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return out, nil
}

// buildCandidateQuery renders the prefilter as SQL with positional args.
func buildCandidateQuery(q candidate.Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where,
		"p.status = "+arg(string(q.Status)),
		"p.owner_id <> "+arg(q.ExcludeOwner),
		"p.id <> "+arg(q.ExcludePetID),
		"cardinality(p.feature_vector) > 0",
	)
	if q.CreatedFrom != nil {
		where = append(where, "p.created_at >= "+arg(*q.CreatedFrom))
	}
	if q.CreatedTo != nil {
		where = append(where, "p.created_at <= "+arg(*q.CreatedTo))
	}
	if q.Box != nil {
		where = append(where, "p.latitude BETWEEN "+arg(q.Box.MinLat)+" AND "+arg(q.Box.MaxLat))
		if q.Box.LonBounded {
			where = append(where, "p.longitude BETWEEN "+arg(q.Box.MinLon)+" AND "+arg(q.Box.MaxLon))
		}
	}
	if q.After != nil {
		at := arg(q.After.CreatedAt)
		where = append(where, "(p.created_at < "+at+" OR (p.created_at = "+at+" AND p.id > "+arg(q.After.ID)+"))")
	}

	sql := `SELECT ` + selectColumns + ` ` + fromClause + `
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY p.created_at DESC, p.id`
	if q.Limit > 0 {
		sql += " LIMIT " + arg(q.Limit)
	}
	return sql, args
}

// buildRecentQuery renders a sweep listing as SQL with positional args.
func buildRecentQuery(q dompet.RecentQuery) (string, []any) {
	args := []any{q.Since}
	sql := `SELECT ` + selectColumns + ` ` + fromClause + `
	WHERE p.status IN ('lost', 'found') AND p.created_at >= $1`
	if q.After != nil {
		args = append(args, q.After.CreatedAt, q.After.ID)
		sql += ` AND (p.created_at > $2 OR (p.created_at = $2 AND p.id > $3))`
	}
	sql += `
	ORDER BY p.created_at, p.id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return sql, args
}
