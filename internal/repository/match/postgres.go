package match

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/petmatch/internal/db"
	"github.com/kailas-cloud/petmatch/internal/db/postgres"
	"github.com/kailas-cloud/petmatch/internal/domain"
	dommatch "github.com/kailas-cloud/petmatch/internal/domain/match"
)

// querier is the consumer interface over a pgx pool (ISP).
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres implements the match repository. Pair uniqueness is enforced by the
// matches_pair_key constraint; transitions are conditional updates on status.
type Postgres struct {
	q querier
}

// NewPostgres creates a Postgres match repository.
func NewPostgres(q querier) *Postgres {
	return &Postgres{q: q}
}

// Create inserts a match. An existing match for the same (lost, found) pair
// yields domain.ErrDuplicateMatch and leaves the stored row untouched.
func (r *Postgres) Create(ctx context.Context, m dommatch.Match) error {
	tag, err := r.q.Exec(ctx, `INSERT INTO matches (
		id, lost_pet_id, found_pet_id, similarity, confidence, status,
		confirmed_by, notes, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, '', '', $7, $8)
	ON CONFLICT ON CONSTRAINT `+postgres.MatchPairConstraint+` DO NOTHING`,
		m.ID(), m.LostPetID(), m.FoundPetID(), m.Similarity(), string(m.Confidence()), string(m.Status()),
		m.CreatedAt(), m.UpdatedAt(),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, postgres.MatchPairConstraint) {
			return duplicate(m)
		}
		return &db.Error{Op: db.OpExec, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return duplicate(m)
	}
	return nil
}

// GetByID loads a match.
func (r *Postgres) GetByID(ctx context.Context, id string) (dommatch.Match, error) {
	var rw row
	err := r.q.QueryRow(ctx, `SELECT `+selectColumns+` FROM matches WHERE id = $1`, id).Scan(rw.dest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return dommatch.Match{}, fmt.Errorf("%w: %s", domain.ErrMatchNotFound, id)
	}
	if err != nil {
		return dommatch.Match{}, &db.Error{Op: db.OpQuery, Err: err}
	}
	return rw.toDomain(), nil
}

// UpdateStatus persists a transitioned match only while the stored row is still
// pending. A lost race yields domain.ErrAlreadyProcessed.
func (r *Postgres) UpdateStatus(ctx context.Context, m dommatch.Match) error {
	tag, err := r.q.Exec(ctx, `UPDATE matches SET
		status = $2, confirmed_at = $3, rejected_at = $4, confirmed_by = $5, notes = $6, updated_at = $7
	WHERE id = $1 AND status = 'pending'`,
		m.ID(), string(m.Status()), m.ConfirmedAt(), m.RejectedAt(), m.ConfirmedBy(), m.Notes(), m.UpdatedAt(),
	)
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM matches WHERE id = $1)`, m.ID()).Scan(&exists); err != nil {
		return &db.Error{Op: db.OpQuery, Err: err}
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrMatchNotFound, m.ID())
	}
	return fmt.Errorf("%w: match %s", domain.ErrAlreadyProcessed, m.ID())
}

// ListByPets returns one page of matches involving any of petIDs, plus the total.
func (r *Postgres) ListByPets(ctx context.Context, petIDs []string, q dommatch.ListQuery) ([]dommatch.Match, int, error) {
	if len(petIDs) == 0 {
		return nil, 0, nil
	}
	where, args := listFilter(petIDs, q)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM matches WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, &db.Error{Op: db.OpQuery, Err: err}
	}
	if total == 0 {
		return nil, 0, nil
	}

	sql := `SELECT ` + selectColumns + ` FROM matches WHERE ` + where +
		` ORDER BY ` + orderBy(q) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset())

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	var out []dommatch.Match
	for rows.Next() {
		var rw row
		if err := rows.Scan(rw.dest()...); err != nil {
			return nil, 0, &db.Error{Op: db.OpQuery, Err: err}
		}
		out = append(out, rw.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &db.Error{Op: db.OpQuery, Err: err}
	}
	return out, total, nil
}

// Stats aggregates matches created within w.
func (r *Postgres) Stats(ctx context.Context, w dommatch.Window) (dommatch.Stats, error) {
	var s dommatch.Stats
	err := r.q.QueryRow(ctx, `SELECT
		count(*),
		count(*) FILTER (WHERE status = 'pending'),
		count(*) FILTER (WHERE status = 'confirmed'),
		count(*) FILTER (WHERE status = 'rejected'),
		COALESCE(avg(similarity), 0),
		count(*) FILTER (WHERE confidence = 'low'),
		count(*) FILTER (WHERE confidence = 'medium'),
		count(*) FILTER (WHERE confidence = 'high')
	FROM matches
	WHERE ($1::timestamptz IS NULL OR created_at >= $1)
	  AND ($2::timestamptz IS NULL OR created_at <= $2)`,
		w.Start, w.End,
	).Scan(&s.Total, &s.Pending, &s.Confirmed, &s.Rejected, &s.AverageSimilarity, &s.Low, &s.Medium, &s.High)
	if err != nil {
		return dommatch.Stats{}, &db.Error{Op: db.OpQuery, Err: err}
	}
	return s, nil
}

func listFilter(petIDs []string, q dommatch.ListQuery) (string, []any) {
	where := []string{"(lost_pet_id = ANY($1) OR found_pet_id = ANY($1))"}
	args := []any{petIDs}
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	return strings.Join(where, " AND "), args
}

func orderBy(q dommatch.ListQuery) string {
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if q.SortOrder == dommatch.Asc {
		dir = "ASC"
	}
	return col + " " + dir + ", id " + dir
}

func duplicate(m dommatch.Match) error {
	return fmt.Errorf("%w: lost %s, found %s", domain.ErrDuplicateMatch, m.LostPetID(), m.FoundPetID())
}
