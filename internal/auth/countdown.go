package auth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kozaktomas/face-gate/internal/constants"
	"github.com/schollz/progressbar/v3"
)

// Countdown shows live frames with the remaining seconds before a flow starts
// scanning. It has no effect on decisions.
type Countdown struct {
	Seconds int
	Tick    time.Duration // length of one second, shortened in tests
	Out     io.Writer     // console progress bar, nil disables it
}

// NewCountdown returns a countdown of seconds printing its progress to out.
func NewCountdown(seconds int, out io.Writer) *Countdown {
	return &Countdown{Seconds: seconds, Tick: constants.CountdownTick, Out: out}
}

// Run streams frames to disp until the countdown elapses.
func (c *Countdown) Run(ctx context.Context, src FrameSource, disp Display) error {
	if c == nil || c.Seconds <= 0 {
		return nil
	}
	tick := c.Tick
	if tick <= 0 {
		tick = constants.CountdownTick
	}
	out := c.Out
	if out == nil {
		out = io.Discard
	}

	bar := progressbar.NewOptions(c.Seconds,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Starting in"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("s"),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	deadline := time.Now().Add(time.Duration(c.Seconds) * tick)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrAborted, err)
		}
		left := time.Until(deadline)
		if left <= 0 {
			return nil
		}
		remaining := int((left + tick - 1) / tick)
		_ = bar.Set(c.Seconds - remaining)

		frame, ok := src.Read()
		if !ok {
			return errSourceExhausted
		}
		if disp.ShowCountdown(frame, remaining) == KeyQuit {
			return errQuit
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
