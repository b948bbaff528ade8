package facematch

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidUsername is returned for empty or non alphanumeric usernames.
var ErrInvalidUsername = errors.New("use only letters and numbers")

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeUsername trims surrounding whitespace and composes the name to NFC,
// so "Zoë" typed with a combining diaeresis and a precomposed ë are the same user.
func NormalizeUsername(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateUsername checks that a normalized username is non-empty and consists of
// unicode letters and digits only.
func ValidateUsername(name string) error {
	if err := validate.Var(name, "required,alphanumunicode"); err != nil {
		return ErrInvalidUsername
	}
	return nil
}
