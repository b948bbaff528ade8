// Package store persists the active and banned face registries and the encoding
// blobs they point at.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kozaktomas/face-gate/internal/facematch"
)

var (
	// ErrStorage is returned when a registry cannot be read or written.
	ErrStorage = errors.New("storage error")

	// ErrEncoding is returned when a stored encoding is missing or corrupt.
	ErrEncoding = errors.New("encoding error")
)

// UserRecord is an enrolled identity in the active registry.
type UserRecord struct {
	Username     string    `json:"username"`
	ID           string    `json:"id,omitempty"`
	FaceFile     string    `json:"face_file"`
	RegisteredAt time.Time `json:"registered_at,omitzero"`
}

// EncodingRef returns the reference of the stored encoding.
func (u UserRecord) EncodingRef() string {
	return u.FaceFile
}

// BannedRecord is an identity moved to the banned registry. It keeps the
// encoding reference of the user record it was created from.
type BannedRecord struct {
	UserRecord
	BannedAt time.Time `json:"banned_at,omitzero"`
}

// Record is implemented by both registry record types.
type Record interface {
	EncodingRef() string
}

// ActiveRegistry maps usernames to enrolled users.
type ActiveRegistry = Registry[UserRecord]

// BannedRegistry maps original usernames to banned identities.
type BannedRegistry = Registry[BannedRecord]

// EncodingReader reads stored encodings.
type EncodingReader interface {
	// ReadEncoding returns the encoding behind ref; ErrEncoding if missing or corrupt
	ReadEncoding(ctx context.Context, ref string) (facematch.Encoding, error)
}

// Store is the persistence boundary for both registries and their encodings.
// Registries are read and written wholesale; there is a single writer.
type Store interface {
	EncodingReader

	// Init prepares the backing medium and creates empty registries if missing
	Init(ctx context.Context) error

	// LoadActive returns the active registry (empty if never saved)
	LoadActive(ctx context.Context) (*ActiveRegistry, error)
	// SaveActive replaces the active registry
	SaveActive(ctx context.Context, r *ActiveRegistry) error

	// LoadBanned returns the banned registry (empty if never saved)
	LoadBanned(ctx context.Context) (*BannedRegistry, error)
	// SaveBanned replaces the banned registry
	SaveBanned(ctx context.Context, r *BannedRegistry) error

	// WriteEncoding stores an encoding owned by label and returns its reference
	WriteEncoding(ctx context.Context, label string, enc facematch.Encoding) (string, error)
	// DeleteEncoding removes a stored encoding; missing encodings are not an error
	DeleteEncoding(ctx context.Context, ref string) error
	// CountEncodings returns the number of stored encodings
	CountEncodings(ctx context.Context) (int, error)

	// Close releases the backing medium
	Close() error
}

// Candidates loads the encoding of every record in registry order.
// A record whose encoding cannot be loaded becomes a candidate carrying the error,
// so the matcher skips it instead of the whole scan failing.
func Candidates[T Record](ctx context.Context, s EncodingReader, r *Registry[T]) []facematch.Candidate {
	out := make([]facematch.Candidate, 0, r.Len())
	for i := range r.Len() {
		label, rec, _ := r.At(i)
		enc, err := s.ReadEncoding(ctx, rec.EncodingRef())
		out = append(out, facematch.Candidate{Label: label, Encoding: enc, Err: err})
	}
	return out
}
