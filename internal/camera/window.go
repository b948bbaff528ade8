package camera

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/kozaktomas/face-gate/internal/auth"
	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/constants"
	"gocv.io/x/gocv"
)

var bannedScreenSize = image.Pt(600, 400)

// Caption baselines in the main window.
var (
	modeCaptionAt = image.Pt(10, 30)
	userCaptionAt = image.Pt(10, 60)
)

// Window is a Display drawing frames and captions in OpenCV windows.
type Window struct {
	title     string
	overlay   config.OverlayConfig
	log       *slog.Logger
	main      *gocv.Window
	countdown *gocv.Window
}

// NewWindow creates the display. OpenCV windows are created on first use.
func NewWindow(title string, overlay config.OverlayConfig, log *slog.Logger) *Window {
	if log == nil {
		log = slog.Default()
	}
	return &Window{title: title, overlay: overlay, log: log}
}

// ShowCountdown draws the remaining seconds over frame.
func (w *Window) ShowCountdown(frame image.Image, remaining int) auth.Key {
	if w.countdown == nil {
		w.countdown = gocv.NewWindow(w.overlay.Windows.Countdown)
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		w.log.Warn("failed to convert frame", "error", err)
		return auth.KeyNone
	}
	defer mat.Close()

	text := fmt.Sprintf(w.overlay.Captions.Countdown, remaining)
	center := image.Pt(mat.Cols()/2-100, mat.Rows()/2)
	gocv.PutText(&mat, text, center, gocv.FontHersheySimplex, 1.5, w.overlay.Colors.Text.RGBA(), 3)

	w.countdown.IMShow(mat)
	return w.keyFor(w.countdown.WaitKey(1))
}

// Show draws the face boxes and captions over frame and polls the keyboard once.
func (w *Window) Show(frame image.Image, o auth.Overlay) auth.Key {
	w.closeCountdown()
	if w.main == nil {
		w.main = gocv.NewWindow(w.title)
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		w.log.Warn("failed to convert frame", "error", err)
		return auth.KeyNone
	}
	defer mat.Close()

	boxColor := w.overlay.Colors.Box.RGBA()
	for _, r := range o.Boxes {
		gocv.Rectangle(&mat, r, boxColor, 2)
	}

	textColor := w.overlay.Colors.Text.RGBA()
	gocv.PutText(&mat, w.caption(o.Mode), modeCaptionAt, gocv.FontHersheySimplex, 0.7, textColor, 2)
	if o.Username != "" {
		gocv.PutText(&mat, fmt.Sprintf(w.overlay.Captions.User, o.Username), userCaptionAt,
			gocv.FontHersheySimplex, 0.7, textColor, 2)
	}

	w.main.IMShow(mat)
	return w.keyFor(w.main.WaitKey(1))
}

// ShowBanned shows the banned image, if one is configured, and then the banned message.
func (w *Window) ShowBanned() {
	w.closeCountdown()
	win := gocv.NewWindow(w.overlay.Windows.Banned)
	defer win.Close()

	delay := int(constants.BannedScreenDelay / time.Millisecond)

	if w.overlay.BannedImage != "" {
		img := gocv.IMRead(w.overlay.BannedImage, gocv.IMReadColor)
		if img.Empty() {
			w.log.Debug("banned image not found", "path", w.overlay.BannedImage)
		} else {
			resized := gocv.NewMat()
			gocv.Resize(img, &resized, bannedScreenSize, 0, 0, gocv.InterpolationLinear)
			win.IMShow(resized)
			win.WaitKey(delay)
			resized.Close()
		}
		img.Close()
	}

	screen, err := gocv.ImageToMatRGB(blankScreen())
	if err != nil {
		w.log.Warn("failed to build banned screen", "error", err)
		return
	}
	defer screen.Close()

	gocv.PutText(&screen, w.overlay.Captions.Banned, image.Pt(50, bannedScreenSize.Y/2),
		gocv.FontHersheySimplex, 1.2, w.overlay.Colors.Banned.RGBA(), 3)
	win.IMShow(screen)
	win.WaitKey(delay)
}

// Close destroys all windows.
func (w *Window) Close() error {
	w.closeCountdown()
	if w.main != nil {
		if err := w.main.Close(); err != nil {
			return fmt.Errorf("closing window %s: %w", w.title, err)
		}
		w.main = nil
	}
	return nil
}

func (w *Window) closeCountdown() {
	if w.countdown != nil {
		_ = w.countdown.Close()
		w.countdown = nil
	}
}

func (w *Window) caption(m auth.Mode) string {
	if m == auth.ModeRegister {
		return w.overlay.Captions.Register
	}
	return w.overlay.Captions.Login
}

// keyFor maps a WaitKey code to an operator key.
func (w *Window) keyFor(code int) auth.Key {
	if code < 0 {
		return auth.KeyNone
	}
	code &= 0xff
	switch {
	case matchesKey(code, w.overlay.CaptureKey):
		return auth.KeyCapture
	case matchesKey(code, w.overlay.QuitKey):
		return auth.KeyQuit
	default:
		return auth.KeyNone
	}
}

func matchesKey(code int, key string) bool {
	return len(key) == 1 && code == int(key[0])
}

func blankScreen() image.Image {
	img := image.NewRGBA(image.Rectangle{Max: bannedScreenSize})
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}
