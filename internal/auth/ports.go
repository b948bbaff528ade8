// Package auth implements the enrollment, ban and login flows on top of a
// registry store, a frame source, a display and a face recognizer.
package auth

import (
	"context"
	"image"

	"github.com/kozaktomas/face-gate/internal/facematch"
)

// Key is an operator key press polled once per displayed frame.
type Key int

const (
	KeyNone Key = iota
	KeyCapture
	KeyQuit
)

// Mode selects the caption drawn on top of a frame.
type Mode int

const (
	ModeRegister Mode = iota
	ModeLogin
)

// Overlay is what a display draws on top of a frame.
type Overlay struct {
	Mode     Mode
	Boxes    []image.Rectangle
	Username string // empty hides the user caption
}

// FrameSource delivers camera frames. Read returns false once the source is exhausted.
type FrameSource interface {
	Read() (image.Image, bool)
	Close() error
}

// Display renders frames for the operator and reports key presses.
type Display interface {
	ShowCountdown(frame image.Image, remaining int) Key
	Show(frame image.Image, o Overlay) Key
	// ShowBanned blocks while the banned screen is visible
	ShowBanned()
	Close() error
}

// Recognizer finds faces in a frame and computes their encodings.
type Recognizer interface {
	Detect(ctx context.Context, frame image.Image) ([]image.Rectangle, error)
	Encode(ctx context.Context, frame image.Image, box image.Rectangle) (facematch.Encoding, error)
}

// Devices opens the camera and the window for one flow. Both are closed by the flow.
type Devices interface {
	OpenSource() (FrameSource, error)
	OpenDisplay(title string) (Display, error)
}
