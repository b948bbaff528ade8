// Package camera connects the login and registration flows to a local webcam
// and an OpenCV window.
package camera

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/kozaktomas/face-gate/internal/auth"
	"github.com/kozaktomas/face-gate/internal/config"
	"gocv.io/x/gocv"
)

// Webcam is a FrameSource reading from a video capture device.
type Webcam struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	log     *slog.Logger
}

// OpenWebcam opens capture device id.
func OpenWebcam(id int, log *slog.Logger) (*Webcam, error) {
	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open video capture %d: %w", id, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %d is not available", id)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Webcam{capture: capture, mat: gocv.NewMat(), log: log}, nil
}

// Read grabs the next frame. It returns false when the device stops delivering frames.
func (w *Webcam) Read() (image.Image, bool) {
	if ok := w.capture.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, false
	}
	img, err := w.mat.ToImage()
	if err != nil {
		w.log.Warn("failed to convert frame", "error", err)
		return nil, false
	}
	return img, true
}

// Close releases the device.
func (w *Webcam) Close() error {
	if err := w.mat.Close(); err != nil {
		return fmt.Errorf("closing frame buffer: %w", err)
	}
	if err := w.capture.Close(); err != nil {
		return fmt.Errorf("closing video capture: %w", err)
	}
	return nil
}

// Devices opens a webcam and a window for each flow.
type Devices struct {
	Device  int
	Overlay config.OverlayConfig
	Log     *slog.Logger
}

// OpenSource opens the configured webcam.
func (d *Devices) OpenSource() (auth.FrameSource, error) {
	return OpenWebcam(d.Device, d.Log)
}

// OpenDisplay opens a window titled title.
func (d *Devices) OpenDisplay(title string) (auth.Display, error) {
	return NewWindow(title, d.Overlay, d.Log), nil
}
