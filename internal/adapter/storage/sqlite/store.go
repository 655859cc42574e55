// Package sqlite is a single-file favorites backend for local demos and the
// favctl tool. It implements the same ports as the postgres adapter.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"go-marketplace/internal/core/domain/favorites"
	"go-marketplace/internal/core/ports"

	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	sqliteConstraintForeignKey = 787
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// Store implements ports.FavoriteStore, ports.ListingRepository,
// ports.UserRepository and ports.Migrator on one SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ ports.FavoriteStore     = (*Store)(nil)
	_ ports.ListingRepository = (*Store)(nil)
	_ ports.UserRepository    = (*Store)(nil)
	_ ports.Migrator          = (*Store)(nil)
)

// Open opens (or creates) the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	// pragmas go in the DSN so every pooled connection gets them
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	return &Store{db: conn, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for metrics collection.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	slices.Sort(files)

	for _, name := range files {
		content, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	s.logger.InfoContext(ctx, "sqlite migrations completed", "count", len(files))
	return nil
}

func (s *Store) List(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT listing_id FROM favorites WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Insert(ctx context.Context, userID, listingID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO favorites (user_id, listing_id, created_at) VALUES (?, ?, ?)`,
		userID, listingID, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert favorite: %w", translate(err))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID, listingID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND listing_id = ?`, userID, listingID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	if n == 0 {
		return favorites.ErrNotFound
	}
	return nil
}

// translate maps constraint failures to domain sentinels.
func translate(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() {
	case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
		return favorites.ErrAlreadyExists
	case sqliteConstraintForeignKey:
		return fmt.Errorf("%w: unknown user or listing", favorites.ErrValidation)
	}
	return err
}
