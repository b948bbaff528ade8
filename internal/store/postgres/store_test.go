package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(&Pool{db: db}), mock
}

func TestStore_LoadActive_KeepsPositionOrder(t *testing.T) {
	s, mock := newMockStore(t)
	registered := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("FROM active_users").WillReturnRows(
		sqlmock.NewRows([]string{"username", "id", "face_ref", "registered_at"}).
			AddRow("bob", "id-b", "bob_1", registered).
			AddRow("alice", "id-a", "alice_1", nil),
	)

	reg, err := s.LoadActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, reg.Keys())

	bob, ok := reg.Get("bob")
	require.True(t, ok)
	assert.Equal(t, "bob_1", bob.FaceFile)
	assert.True(t, bob.RegisteredAt.Equal(registered))

	alice, _ := reg.Get("alice")
	assert.True(t, alice.RegisteredAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadBanned_QueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM banned_users").WillReturnError(errors.New("connection reset"))

	_, err := s.LoadBanned(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStorage)
}

func TestStore_SaveActive_ReplacesInOrder(t *testing.T) {
	s, mock := newMockStore(t)

	reg := store.NewRegistry[store.UserRecord]()
	reg.Put("carol", store.UserRecord{Username: "carol", FaceFile: "carol_1"})
	reg.Put("dave", store.UserRecord{Username: "dave", FaceFile: "dave_1"})

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM active_users").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO active_users").
		WithArgs("carol", 0, "", "carol_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO active_users").
		WithArgs("dave", 1, "", "dave_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveActive(context.Background(), reg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveBanned_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)

	reg := store.NewRegistry[store.BannedRecord]()
	reg.Put("eve", store.BannedRecord{UserRecord: store.UserRecord{Username: "eve", FaceFile: "eve_1"}})

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM banned_users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO banned_users").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveBanned(context.Background(), reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReadEncoding(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT embedding FROM face_encodings").
			WithArgs("alice_1").
			WillReturnRows(sqlmock.NewRows([]string{"embedding"}).AddRow("[0.5,0.25,-1]"))

		enc, err := s.ReadEncoding(context.Background(), "alice_1")
		require.NoError(t, err)
		require.Len(t, enc, 3)
		assert.InDelta(t, 0.5, enc[0], 1e-6)
		assert.InDelta(t, 0.25, enc[1], 1e-6)
		assert.InDelta(t, -1, enc[2], 1e-6)
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT embedding FROM face_encodings").WillReturnError(sql.ErrNoRows)

		_, err := s.ReadEncoding(context.Background(), "ghost_1")
		assert.ErrorIs(t, err, store.ErrEncoding)
	})
}

func TestStore_WriteEncoding(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO face_encodings").
		WithArgs(sqlmock.AnyArg(), "alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ref, err := s.WriteEncoding(context.Background(), "alice", facematch.Encoding{0.1, 0.2})
	require.NoError(t, err)
	assert.Regexp(t, `^alice_[0-9a-f-]{36}$`, ref)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WriteEncoding_RejectsEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.WriteEncoding(context.Background(), "alice", nil)
	assert.ErrorIs(t, err, store.ErrEncoding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CountEncodings(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM face_encodings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := s.CountEncodings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPendingMigrations(t *testing.T) {
	pending, err := pendingMigrations(map[string]bool{})
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	assert.Equal(t, "001_registries.sql", pending[0].version)
	assert.Contains(t, pending[0].body, "CREATE TABLE IF NOT EXISTS active_users")

	pending, err = pendingMigrations(map[string]bool{"001_registries.sql": true})
	require.NoError(t, err)
	for _, m := range pending {
		assert.NotEqual(t, "001_registries.sql", m.version)
	}
}

func newMockPool(t *testing.T) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Pool{db: db}, mock
}

func TestPool_Migrate(t *testing.T) {
	t.Run("applies pending migrations", func(t *testing.T) {
		pool, mock := newMockPool(t)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs("001_registries.sql").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("FROM pg_extension").
			WillReturnRows(sqlmock.NewRows([]string{"extversion"}).AddRow("0.8.0"))

		require.NoError(t, pool.Migrate(context.Background(), discardLogger()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed migration rolls back", func(t *testing.T) {
		pool, mock := newMockPool(t)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").
			WillReturnError(errors.New(`extension "vector" is not available`))
		mock.ExpectRollback()

		err := pool.Migrate(context.Background(), discardLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "001_registries.sql")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing pgvector", func(t *testing.T) {
		pool, mock := newMockPool(t)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001_registries.sql"))
		mock.ExpectQuery("FROM pg_extension").
			WillReturnRows(sqlmock.NewRows([]string{"extversion"}))

		err := pool.Migrate(context.Background(), discardLogger())
		assert.ErrorIs(t, err, ErrVectorExtension)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
