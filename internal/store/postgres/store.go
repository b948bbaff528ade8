package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/store"
	"github.com/pgvector/pgvector-go"
)

// Store keeps the registries in ordered tables and encodings as pgvector columns.
type Store struct {
	pool *Pool
}

// NewStore creates a registry store on top of pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

var _ store.Store = (*Store)(nil)

// Init is a no-op; the schema is created by Migrate.
func (s *Store) Init(_ context.Context) error {
	return nil
}

// LoadActive reads the active registry in insertion order.
func (s *Store) LoadActive(ctx context.Context) (*store.ActiveRegistry, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT username, id, face_ref, registered_at
		FROM active_users
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query active users: %w", store.ErrStorage, err)
	}
	defer rows.Close()

	reg := store.NewRegistry[store.UserRecord]()
	for rows.Next() {
		var rec store.UserRecord
		var registeredAt sql.NullTime
		if err := rows.Scan(&rec.Username, &rec.ID, &rec.FaceFile, &registeredAt); err != nil {
			return nil, fmt.Errorf("%w: scan active user: %w", store.ErrStorage, err)
		}
		rec.RegisteredAt = nullTime(registeredAt)
		reg.Put(rec.Username, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate active users: %w", store.ErrStorage, err)
	}
	return reg, nil
}

// SaveActive replaces the active registry in a single transaction.
func (s *Store) SaveActive(ctx context.Context, r *store.ActiveRegistry) error {
	return s.replace(ctx, "active_users", func(tx *sql.Tx) error {
		if r == nil {
			return nil
		}
		for i := range r.Len() {
			key, rec, _ := r.At(i)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO active_users (username, position, id, face_ref, registered_at)
				VALUES ($1, $2, $3, $4, $5)
			`, key, i, rec.ID, rec.FaceFile, timeArg(rec.RegisteredAt))
			if err != nil {
				return fmt.Errorf("insert active user %s: %w", key, err)
			}
		}
		return nil
	})
}

// LoadBanned reads the banned registry in insertion order.
func (s *Store) LoadBanned(ctx context.Context) (*store.BannedRegistry, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT username, id, face_ref, registered_at, banned_at
		FROM banned_users
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query banned users: %w", store.ErrStorage, err)
	}
	defer rows.Close()

	reg := store.NewRegistry[store.BannedRecord]()
	for rows.Next() {
		var rec store.BannedRecord
		var registeredAt, bannedAt sql.NullTime
		if err := rows.Scan(&rec.Username, &rec.ID, &rec.FaceFile, &registeredAt, &bannedAt); err != nil {
			return nil, fmt.Errorf("%w: scan banned user: %w", store.ErrStorage, err)
		}
		rec.RegisteredAt = nullTime(registeredAt)
		rec.BannedAt = nullTime(bannedAt)
		reg.Put(rec.Username, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate banned users: %w", store.ErrStorage, err)
	}
	return reg, nil
}

// SaveBanned replaces the banned registry in a single transaction.
func (s *Store) SaveBanned(ctx context.Context, r *store.BannedRegistry) error {
	return s.replace(ctx, "banned_users", func(tx *sql.Tx) error {
		if r == nil {
			return nil
		}
		for i := range r.Len() {
			key, rec, _ := r.At(i)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO banned_users (username, position, id, face_ref, registered_at, banned_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, key, i, rec.ID, rec.FaceFile, timeArg(rec.RegisteredAt), timeArg(rec.BannedAt))
			if err != nil {
				return fmt.Errorf("insert banned user %s: %w", key, err)
			}
		}
		return nil
	})
}

// replace empties table and refills it inside one transaction.
func (s *Store) replace(ctx context.Context, table string, fill func(tx *sql.Tx) error) error {
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", store.ErrStorage, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: clear %s: %w", store.ErrStorage, table, err)
	}
	if err := fill(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %w", store.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %w", store.ErrStorage, table, err)
	}
	return nil
}

// WriteEncoding stores enc under a fresh reference owned by label.
func (s *Store) WriteEncoding(ctx context.Context, label string, enc facematch.Encoding) (string, error) {
	if len(enc) == 0 {
		return "", fmt.Errorf("%w: refusing to store empty encoding for %s", store.ErrEncoding, label)
	}

	ref := label + "_" + uuid.NewString()
	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO face_encodings (ref, label, embedding)
		VALUES ($1, $2, $3)
	`, ref, label, pgvector.NewVector(enc))
	if err != nil {
		return "", fmt.Errorf("%w: insert encoding for %s: %w", store.ErrStorage, label, err)
	}
	return ref, nil
}

// ReadEncoding loads the encoding behind ref.
func (s *Store) ReadEncoding(ctx context.Context, ref string) (facematch.Encoding, error) {
	var vec pgvector.Vector
	err := s.pool.db.QueryRowContext(ctx, "SELECT embedding FROM face_encodings WHERE ref = $1", ref).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s not found", store.ErrEncoding, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", store.ErrEncoding, ref, err)
	}
	if len(vec.Slice()) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", store.ErrEncoding, ref)
	}
	return facematch.Encoding(vec.Slice()), nil
}

// DeleteEncoding removes the encoding behind ref.
func (s *Store) DeleteEncoding(ctx context.Context, ref string) error {
	if _, err := s.pool.db.ExecContext(ctx, "DELETE FROM face_encodings WHERE ref = $1", ref); err != nil {
		return fmt.Errorf("%w: delete encoding %s: %w", store.ErrStorage, ref, err)
	}
	return nil
}

// CountEncodings returns the number of stored encodings.
func (s *Store) CountEncodings(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM face_encodings").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count encodings: %w", store.ErrStorage, err)
	}
	return n, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func timeArg(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}
