package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidHour is returned when an hour outside 0..23 is selected.
var ErrInvalidHour = errors.New("hour must be between 0 and 23")

// ErrInvalidZoom is returned for a map zoom outside MinZoom..MaxZoom.
var ErrInvalidZoom = errors.New("zoom must be between 0 and 30")

// FormatError reports input that is not shaped as a delimited table. It is
// fatal to one fetch cycle; callers keep the previously rendered state.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed visitor table: %s: %v", e.Reason, e.Err)
	}
	return "malformed visitor table: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// FieldError records a single field that failed coercion. The row is kept and
// the field treated as absent.
type FieldError struct {
	Row    int // 1-based data row, header excluded
	Column string
	Raw    string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("row %d: column %s: invalid value %q: %v", e.Row, e.Column, e.Raw, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// NetworkError wraps a failed fetch of the visitor feed. Callers keep the
// previously rendered state.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsFormatError reports whether err is, or wraps, a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsNetworkError reports whether err is, or wraps, a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
