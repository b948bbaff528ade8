package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/metrics"
	"github.com/kozaktomas/face-gate/internal/store"
)

// EnrollState is the terminal state of an enrollment.
type EnrollState int

const (
	EnrollRejected EnrollState = iota
	EnrollStored
)

func (s EnrollState) String() string {
	if s == EnrollStored {
		return "stored"
	}
	return "rejected"
}

// EnrollResult describes a finished enrollment.
type EnrollResult struct {
	State  EnrollState
	Record store.UserRecord
}

// Enroller captures one face encoding for a new username.
type Enroller struct {
	Store      store.Store
	Devices    Devices
	Recognizer Recognizer
	Countdown  *Countdown
	Title      string
	Out        io.Writer // operator hints, nil discards them
	Log        *slog.Logger
	Metrics    *metrics.Metrics
}

// Enroll registers username. The registries and the encoding blobs are only
// written once a single face has been captured and encoded.
func (e *Enroller) Enroll(ctx context.Context, username string) (EnrollResult, error) {
	res, err := e.enroll(ctx, username)
	outcome := res.State.String()
	switch {
	case errors.Is(err, ErrAborted):
		outcome = "aborted"
	case err != nil && !errors.Is(err, ErrValidation):
		outcome = "error"
	}
	e.Metrics.IncEnrollment(outcome)
	return res, err
}

func (e *Enroller) enroll(ctx context.Context, username string) (EnrollResult, error) {
	log := e.logger()
	username = facematch.NormalizeUsername(username)
	if err := facematch.ValidateUsername(username); err != nil {
		return EnrollResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	active, err := e.Store.LoadActive(ctx)
	if err != nil {
		return EnrollResult{}, err
	}
	if active.Has(username) {
		return EnrollResult{}, fmt.Errorf("%w: username %q already exists", ErrValidation, username)
	}
	banned, err := e.Store.LoadBanned(ctx)
	if err != nil {
		return EnrollResult{}, err
	}
	if banned.Has(username) {
		return EnrollResult{}, fmt.Errorf("%w: username %q is banned", ErrValidation, username)
	}

	src, err := e.Devices.OpenSource()
	if err != nil {
		return EnrollResult{}, fmt.Errorf("opening camera: %w", err)
	}
	defer src.Close()

	disp, err := e.Devices.OpenDisplay(e.Title)
	if err != nil {
		return EnrollResult{}, fmt.Errorf("opening window: %w", err)
	}
	defer disp.Close()

	if err := e.Countdown.Run(ctx, src, disp); err != nil {
		return EnrollResult{}, err
	}

	enc, err := e.capture(ctx, src, disp, username)
	if err != nil {
		return EnrollResult{}, err
	}

	ref, err := e.Store.WriteEncoding(ctx, username, enc)
	if err != nil {
		return EnrollResult{}, err
	}

	rec := store.UserRecord{
		Username:     username,
		ID:           uuid.NewString(),
		FaceFile:     ref,
		RegisteredAt: time.Now().UTC(),
	}
	active.Put(username, rec)
	if err := e.Store.SaveActive(ctx, active); err != nil {
		if delErr := e.Store.DeleteEncoding(ctx, ref); delErr != nil {
			log.Error("failed to remove encoding after save error", "ref", ref, "error", delErr)
		}
		return EnrollResult{}, err
	}

	log.Info("user registered", "username", username, "ref", ref)
	return EnrollResult{State: EnrollStored, Record: rec}, nil
}

// capture streams frames until the operator presses the capture key while
// exactly one face is visible, then encodes that face.
func (e *Enroller) capture(ctx context.Context, src FrameSource, disp Display, username string) (facematch.Encoding, error) {
	log := e.logger()
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}

		frame, ok := src.Read()
		if !ok {
			return nil, errSourceExhausted
		}

		boxes, err := e.Recognizer.Detect(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("detecting faces: %w", err)
		}

		switch disp.Show(frame, Overlay{Mode: ModeRegister, Boxes: boxes, Username: username}) {
		case KeyQuit:
			return nil, errQuit
		case KeyCapture:
			if len(boxes) != 1 {
				log.Warn("capture ignored", "faces", len(boxes))
				e.hint(len(boxes))
				continue
			}
			enc, err := e.Recognizer.Encode(ctx, frame, boxes[0])
			if err != nil {
				return nil, fmt.Errorf("%w: encoding captured face: %w", store.ErrEncoding, err)
			}
			return enc, nil
		}
	}
}

func (e *Enroller) hint(faces int) {
	if e.Out == nil {
		return
	}
	if faces == 0 {
		fmt.Fprintln(e.Out, "No face detected! Please try again.")
		return
	}
	fmt.Fprintln(e.Out, "Multiple faces detected! Please ensure only one face is visible.")
}

func (e *Enroller) logger() *slog.Logger {
	if e.Log == nil {
		return slog.Default()
	}
	return e.Log
}
