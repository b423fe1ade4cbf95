package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration commands.
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
)

// Migrate runs a goose command against the embedded migrations.
func Migrate(ctx context.Context, d *DB, command string, logger *zap.Logger) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(d.Pool)
	defer func() { _ = sqlDB.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}

	switch command {
	case MigrateUp:
		results, err := provider.Up(ctx)
		for _, r := range results {
			logger.Info("migration applied",
				zap.Int64("version", r.Source.Version),
				zap.String("path", r.Source.Path),
				zap.Duration("duration", r.Duration),
			)
		}
		if err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
		if len(results) == 0 {
			logger.Info("schema up to date")
		}
	case MigrateDown:
		r, err := provider.Down(ctx)
		if err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
		logger.Info("migration rolled back",
			zap.Int64("version", r.Source.Version),
			zap.String("path", r.Source.Path),
		)
	case MigrateStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
		for _, s := range statuses {
			logger.Info("migration status",
				zap.Int64("version", s.Source.Version),
				zap.String("path", s.Source.Path),
				zap.String("state", string(s.State)),
				zap.Time("applied_at", s.AppliedAt),
			)
		}
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	return nil
}
