package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrVectorExtension is returned when the database has no pgvector extension.
var ErrVectorExtension = errors.New("pgvector extension is not installed")

// migration is one embedded schema file, versioned by its file name.
type migration struct {
	version string
	body    string
}

// pendingMigrations returns the embedded migrations not in applied, oldest first.
func pendingMigrations(applied map[string]bool) ([]migration, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)

	var pending []migration
	for _, name := range names {
		version := path.Base(name)
		if applied[version] {
			continue
		}
		body, err := migrationsFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", version, err)
		}
		pending = append(pending, migration{version: version, body: string(body)})
	}
	return pending, nil
}

// appliedVersions creates the bookkeeping table when needed and returns what it holds.
func (p *Pool) appliedVersions(ctx context.Context) (map[string]bool, error) {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// apply runs m and records its version in one transaction.
func (p *Pool) apply(ctx context.Context, m migration) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.body); err != nil {
		return fmt.Errorf("run migration %s: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.version, err)
	}
	return tx.Commit()
}

// vectorVersion returns the installed pgvector version.
func (p *Pool) vectorVersion(ctx context.Context) (string, error) {
	var version string
	err := p.db.QueryRowContext(ctx, "SELECT extversion FROM pg_extension WHERE extname = 'vector'").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrVectorExtension
	}
	if err != nil {
		return "", fmt.Errorf("query pg_extension: %w", err)
	}
	return version, nil
}

// Migrate creates or upgrades the registry tables and checks that encodings
// can be stored as vectors.
func (p *Pool) Migrate(ctx context.Context, log *slog.Logger) error {
	applied, err := p.appliedVersions(ctx)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(applied)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := p.apply(ctx, m); err != nil {
			return err
		}
		log.Info("applied registry migration", "version", m.version)
	}

	version, err := p.vectorVersion(ctx)
	if err != nil {
		return err
	}
	log.Debug("registry schema ready", "migrations", len(applied)+len(pending), "pgvector", version)
	return nil
}
