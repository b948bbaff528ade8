package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-gate/internal/constants"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

// FileStore keeps both registries as JSON files and every encoding as a gob blob,
// all inside one data directory. Writes go to a temporary file that is renamed
// over the target, so a failed save leaves the previous file intact.
type FileStore struct {
	dir string
	log *slog.Logger
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, log *slog.Logger) *FileStore {
	if dir == "" {
		dir = constants.DefaultDataDir
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{dir: dir, log: log}
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) activePath() string {
	return filepath.Join(s.dir, constants.ActiveRegistryFile)
}

func (s *FileStore) bannedPath() string {
	return filepath.Join(s.dir, constants.BannedRegistryFile)
}

// Init creates the data directory and writes empty registries that do not exist yet.
func (s *FileStore) Init(_ context.Context) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: creating data dir %s: %w", ErrStorage, s.dir, err)
	}
	for _, path := range []string{s.activePath(), s.bannedPath()} {
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("%w: checking %s: %w", ErrStorage, path, err)
		}
		if err := renameio.WriteFile(path, []byte("{}"), 0o600); err != nil {
			return fmt.Errorf("%w: initializing %s: %w", ErrStorage, path, err)
		}
		s.log.Debug("initialized registry", "path", path)
	}
	return nil
}

func loadRegistry[T any](path string) (*Registry[T], error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from trusted config
	if os.IsNotExist(err) {
		return NewRegistry[T](), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrStorage, path, err)
	}

	reg := NewRegistry[T]()
	if len(bytes.TrimSpace(data)) == 0 {
		return reg, nil
	}
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrStorage, path, err)
	}
	return reg, nil
}

func saveRegistry[T any](path string, r *Registry[T]) error {
	if r == nil {
		r = NewRegistry[T]()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrStorage, path, err)
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrStorage, path, err)
	}
	return nil
}

// LoadActive reads the active registry.
func (s *FileStore) LoadActive(_ context.Context) (*ActiveRegistry, error) {
	reg, err := loadRegistry[UserRecord](s.activePath())
	if err != nil {
		return nil, err
	}
	fillUsernames(reg)
	return reg, nil
}

// SaveActive replaces the active registry file.
func (s *FileStore) SaveActive(_ context.Context, r *ActiveRegistry) error {
	return saveRegistry(s.activePath(), r)
}

// LoadBanned reads the banned registry.
func (s *FileStore) LoadBanned(_ context.Context) (*BannedRegistry, error) {
	reg, err := loadRegistry[BannedRecord](s.bannedPath())
	if err != nil {
		return nil, err
	}
	for _, key := range reg.Keys() {
		rec, _ := reg.Get(key)
		if rec.Username == "" {
			rec.Username = key
			reg.Put(key, rec)
		}
	}
	return reg, nil
}

// SaveBanned replaces the banned registry file.
func (s *FileStore) SaveBanned(_ context.Context, r *BannedRegistry) error {
	return saveRegistry(s.bannedPath(), r)
}

// fillUsernames backfills the username field for registries written by older
// versions, which only stored it as the key.
func fillUsernames(reg *ActiveRegistry) {
	for _, key := range reg.Keys() {
		rec, _ := reg.Get(key)
		if rec.Username == "" {
			rec.Username = key
			reg.Put(key, rec)
		}
	}
}

// blobPath resolves an encoding reference inside the data directory.
// References are plain file names; anything that would escape the directory is rejected.
func (s *FileStore) blobPath(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", fmt.Errorf("invalid encoding reference %q", ref)
	}
	return filepath.Join(s.dir, ref), nil
}

// WriteEncoding stores enc as a new blob owned by label.
// Every call produces a fresh reference so an old blob is never overwritten.
func (s *FileStore) WriteEncoding(_ context.Context, label string, enc facematch.Encoding) (string, error) {
	if len(enc) == 0 {
		return "", fmt.Errorf("%w: refusing to store empty encoding for %s", ErrEncoding, label)
	}

	ref := label + "_" + uuid.NewString() + constants.EncodingFileSuffix
	path, err := s.blobPath(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode([]float32(enc)); err != nil {
		return "", fmt.Errorf("%w: encoding blob for %s: %w", ErrEncoding, label, err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("%w: writing %s: %w", ErrStorage, path, err)
	}
	return ref, nil
}

// ReadEncoding loads the blob behind ref.
func (s *FileStore) ReadEncoding(_ context.Context, ref string) (facematch.Encoding, error) {
	path, err := s.blobPath(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is validated by blobPath
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrEncoding, ref, err)
	}

	var vec []float32
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vec); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrEncoding, ref, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrEncoding, ref)
	}
	return facematch.Encoding(vec), nil
}

// DeleteEncoding removes the blob behind ref.
func (s *FileStore) DeleteEncoding(_ context.Context, ref string) error {
	path, err := s.blobPath(ref)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %w", ErrStorage, path, err)
	}
	return nil
}

// CountEncodings counts the blobs in the data directory.
func (s *FileStore) CountEncodings(_ context.Context) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+constants.EncodingFileSuffix))
	if err != nil {
		return 0, fmt.Errorf("%w: listing encodings: %w", ErrStorage, err)
	}
	return len(matches), nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
