package scaleutils

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedEOF      = fmt.Errorf("unexpected end of SCALE data")
	ErrInvalidBool        = fmt.Errorf("invalid bool encoding")
	ErrInvalidOption      = fmt.Errorf("invalid option discriminant")
	ErrInvalidEnumVariant = fmt.Errorf("invalid enum variant index")
	ErrCompactOverflow    = fmt.Errorf("compact value out of range")
	ErrInvalidText        = fmt.Errorf("invalid UTF-8 in text")
	ErrInvalidChar        = fmt.Errorf("invalid unicode scalar value")
	ErrTrailingBytes      = fmt.Errorf("did not consume full SCALE range")
)

// DecodeError annotates a decoding failure with the byte offset it occurred at
// and the dotted path of the element being decoded.
type DecodeError struct {
	Err      error
	Path     string
	Position int
}

func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s, offset %d", e.Err, e.Path, e.Position)
	}
	return fmt.Sprintf("%s at offset %d", e.Err, e.Position)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// WrapError attaches path and position context to err. If err already carries a
// DecodeError, the path segment is prepended instead of nesting another wrapper.
func WrapError(err error, path string, position int) error {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		if path != "" {
			if decodeErr.Path != "" {
				decodeErr.Path = path + "." + decodeErr.Path
			} else {
				decodeErr.Path = path
			}
		}
		return err
	}
	return &DecodeError{Err: err, Path: path, Position: position}
}
