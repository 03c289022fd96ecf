package commands

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration marks a command or tokenizer that was built with
	// bad input. It is a programming mistake and should abort setup.
	ErrInvalidConfiguration = errors.New("invalid command configuration")

	// ErrMalformedInput is returned by the tokenizer for lines that cannot be
	// parsed into a command.
	ErrMalformedInput = errors.New("malformed input")

	// ErrDuplicateParam is returned when a line names the same pair key twice.
	ErrDuplicateParam = fmt.Errorf("%w: duplicate parameter", ErrMalformedInput)

	// ErrConversion is returned by the typed parameter accessors on Context.
	ErrConversion = errors.New("parameter conversion failed")

	// ErrConfiguration is returned when help data cannot be loaded.
	ErrConfiguration = errors.New("configuration error")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
