package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"go-marketplace/internal/core/ports"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator executes the embedded up scripts in file name order. Every script
// is idempotent (IF NOT EXISTS), so running it twice is harmless.
type Migrator struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

var _ ports.Migrator = (*Migrator)(nil)

func NewMigrator(db *pgxpool.Pool, logger *slog.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

func (m *Migrator) Migrate(ctx context.Context) error {
	m.logger.InfoContext(ctx, "running database migrations")

	files, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	slices.Sort(files)

	for _, name := range files {
		content, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := m.db.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		m.logger.DebugContext(ctx, "applied migration", "file", name)
	}

	m.logger.InfoContext(ctx, "migrations completed successfully", "count", len(files))
	return nil
}
