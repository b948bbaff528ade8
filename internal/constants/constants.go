// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// ConfidenceThreshold is the maximum Euclidean distance between two face
	// encodings for them to be considered the same identity.
	// Lower values = stricter matching
	ConfidenceThreshold = 0.6

	// IoUThreshold is the minimum Intersection over Union required to pair a
	// face returned by the recognizer with a box from an earlier detection
	IoUThreshold = 0.1

	// DetectionScale is the factor frames are shrunk by before face detection.
	// Boxes are scaled back by 1/DetectionScale for display.
	DetectionScale = 0.25

	// AuditNeighbors is how many nearest identities the audit looks at per identity
	AuditNeighbors = 3
)

// Flow timing constants
const (
	// CountdownTick is the duration of one countdown step
	CountdownTick = time.Second

	// ConfirmationDelay is how long a successful login stays on screen
	ConfirmationDelay = time.Second

	// BannedScreenDelay is how long the banned screen stays on screen
	BannedScreenDelay = 2 * time.Second
)

// Storage constants
const (
	// ActiveRegistryFile is the registry of users allowed to log in
	ActiveRegistryFile = "user_data.json"

	// BannedRegistryFile is the registry of banned identities
	BannedRegistryFile = "banned_users.json"

	// EncodingFileSuffix is appended to every stored encoding blob
	EncodingFileSuffix = "_face.gob"

	// DefaultDataDir is the directory registries and blobs live in
	DefaultDataDir = "face_data"
)
