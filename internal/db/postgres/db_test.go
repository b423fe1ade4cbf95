package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pair := &pgconn.PgError{Code: "23505", ConstraintName: "matches_pair_key"}
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"any unique", pair, "", true},
		{"named unique", pair, "matches_pair_key", true},
		{"wrapped", fmt.Errorf("insert: %w", pair), "matches_pair_key", true},
		{"other constraint", pair, "matches_pkey", false},
		{"fk violation", &pgconn.PgError{Code: "23503"}, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConnect_EmptyDSN(t *testing.T) {
	if _, err := Connect(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, f := range files {
		data, err := fs.ReadFile(migrationsFS, f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		src := string(data)
		if !strings.Contains(src, "-- +goose Up") || !strings.Contains(src, "-- +goose Down") {
			t.Errorf("%s: missing goose annotations", f)
		}
	}

	data, _ := fs.ReadFile(migrationsFS, "migrations/00001_init.sql")
	if !strings.Contains(string(data), "CONSTRAINT "+MatchPairConstraint+" UNIQUE (lost_pet_id, found_pet_id)") {
		t.Error("matches must carry a unique (lost_pet_id, found_pet_id) constraint")
	}
}
