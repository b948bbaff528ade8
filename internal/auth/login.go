package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/metrics"
	"github.com/kozaktomas/face-gate/internal/store"
)

// LoginState is the terminal state of a login scan.
type LoginState int

const (
	LoginAborted LoginState = iota
	LoginAuthenticated
	LoginBanned
	LoginNoMatch
)

func (s LoginState) String() string {
	switch s {
	case LoginAuthenticated:
		return "granted"
	case LoginBanned:
		return "banned"
	case LoginNoMatch:
		return "no_match"
	default:
		return "aborted"
	}
}

// LoginResult describes a finished login scan.
type LoginResult struct {
	State    LoginState
	Username string // matched label, set for LoginAuthenticated and LoginBanned
	Reason   error  // why the scan was aborted
}

// Authenticator scans camera frames until a face matches a banned or an active identity.
type Authenticator struct {
	Store      store.Store
	Devices    Devices
	Recognizer Recognizer
	Matcher    *facematch.Matcher
	Countdown  *Countdown
	Title      string

	// ConfirmDelay keeps the matched username on screen before returning
	ConfirmDelay time.Duration
	// ScanTimeout ends a scan without a match as LoginNoMatch; zero scans until aborted
	ScanTimeout time.Duration

	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// Authenticate runs one login scan. Every frame is decided on its own: the banned
// registry is checked before the active one, and only a match ends the scan.
func (a *Authenticator) Authenticate(ctx context.Context) (LoginResult, error) {
	start := time.Now()
	res, err := a.authenticate(ctx)
	if err != nil {
		a.Metrics.IncAuth("error")
	} else {
		a.Metrics.IncAuth(res.State.String())
		a.Metrics.ObserveScan(time.Since(start))
	}
	return res, err
}

func (a *Authenticator) authenticate(ctx context.Context) (LoginResult, error) {
	log := a.Log
	if log == nil {
		log = slog.Default()
	}
	matcher := a.Matcher
	if matcher == nil {
		matcher = facematch.NewMatcher()
	}

	// Both registries must load. An unreadable banned registry must not let
	// banned faces through as an empty one would.
	banned, err := a.Store.LoadBanned(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	active, err := a.Store.LoadActive(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	bannedCands := store.Candidates(ctx, a.Store, banned)
	activeCands := store.Candidates(ctx, a.Store, active)
	warnUnreadable(log, "banned", bannedCands)
	warnUnreadable(log, "active", activeCands)

	src, err := a.Devices.OpenSource()
	if err != nil {
		return LoginResult{}, fmt.Errorf("opening camera: %w", err)
	}
	defer src.Close()

	disp, err := a.Devices.OpenDisplay(a.Title)
	if err != nil {
		return LoginResult{}, fmt.Errorf("opening window: %w", err)
	}
	defer disp.Close()

	if err := a.Countdown.Run(ctx, src, disp); err != nil {
		if errors.Is(err, ErrAborted) {
			return LoginResult{State: LoginAborted, Reason: err}, nil
		}
		return LoginResult{}, err
	}

	var deadline time.Time
	if a.ScanTimeout > 0 {
		deadline = time.Now().Add(a.ScanTimeout)
	}

	for {
		if err := ctx.Err(); err != nil {
			return LoginResult{State: LoginAborted, Reason: err}, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			log.Info("login scan timed out", "timeout", a.ScanTimeout)
			return LoginResult{State: LoginNoMatch}, nil
		}

		frame, ok := src.Read()
		if !ok {
			return LoginResult{State: LoginAborted, Reason: errSourceExhausted}, nil
		}

		boxes, err := a.Recognizer.Detect(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return LoginResult{State: LoginAborted, Reason: ctx.Err()}, nil
			}
			log.Warn("face detection failed, skipping frame", "error", err)
			boxes = nil
		}

		overlay := Overlay{Mode: ModeLogin, Boxes: boxes}
		if len(boxes) > 0 {
			// Only the first face decides; the others are just outlined.
			probe, err := a.Recognizer.Encode(ctx, frame, boxes[0])
			if err != nil {
				log.Debug("no encoding for frame", "error", err)
				probe = nil
			}

			if label, ok := matcher.BestMatch(probe, bannedCands); ok {
				log.Warn("banned face detected", "label", label)
				disp.ShowBanned()
				return LoginResult{State: LoginBanned, Username: label}, nil
			}

			if label, ok := matcher.BestMatch(probe, activeCands); ok {
				overlay.Username = label
				disp.Show(frame, overlay)
				if err := sleep(ctx, a.ConfirmDelay); err != nil {
					log.Debug("confirmation delay interrupted", "error", err)
				}
				log.Info("user authenticated", "username", label)
				return LoginResult{State: LoginAuthenticated, Username: label}, nil
			}

			if label, dist, ok := matcher.Nearest(probe, activeCands); ok {
				log.Debug("no match", "nearest", label, "distance", dist, "threshold", matcher.Threshold)
			}
		}

		if disp.Show(frame, overlay) == KeyQuit {
			return LoginResult{State: LoginAborted, Reason: errQuit}, nil
		}
	}
}

func warnUnreadable(log *slog.Logger, registry string, cands []facematch.Candidate) {
	for _, c := range cands {
		if c.Err != nil {
			log.Warn("skipping identity with unreadable encoding", "registry", registry, "label", c.Label, "error", c.Err)
		}
	}
}
