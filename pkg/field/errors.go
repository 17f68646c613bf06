package field

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of them.
var (
	// ErrInsufficientData is returned when the input is shorter than a fixed width.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrOverflow is returned when an assigned value does not fit the field.
	ErrOverflow = errors.New("value out of range")
	// ErrType is returned when an assigned value cannot be converted.
	ErrType = errors.New("type mismatch")
	// ErrUnknownVariant is returned when a variant or flag name is not declared.
	ErrUnknownVariant = errors.New("unknown variant")
	// ErrChecksumMismatch is returned by Verify and Validate.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrStructural is returned when a count source cannot be resolved or a
	// container operation would break the tree shape.
	ErrStructural = errors.New("structural error")
	// ErrValidation is returned when a WithValidation predicate fails.
	ErrValidation = errors.New("validation failed")
)

// Error reports a failed operation on a field.
type Error struct {
	Chain string // dotted path from the root
	Op    string // "parse", "set", "update", ...
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Chain, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(f Field, op string, kind error, format string, args ...any) error {
	var err error
	if format == "" {
		err = kind
	} else {
		err = fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
	}
	return &Error{Chain: Chain(f), Op: op, Err: err}
}
