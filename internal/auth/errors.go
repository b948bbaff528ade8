package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for a bad, duplicate or banned username.
	ErrValidation = errors.New("validation error")

	// ErrSelection is returned for an invalid ban target.
	ErrSelection = errors.New("invalid selection")

	// ErrAborted is returned when the operator quits or the camera stops.
	ErrAborted = errors.New("aborted")

	errSourceExhausted = fmt.Errorf("%w: camera stopped delivering frames", ErrAborted)
	errQuit            = fmt.Errorf("%w: quit by operator", ErrAborted)
)
