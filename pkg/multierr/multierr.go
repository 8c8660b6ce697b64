package multierr

import (
	"errors"
	"fmt"
	"strings"
)

// Error collects independent failures so callers can report all of them at
// once instead of stopping at the first. Validation and check fan-ins append
// into one of these and return ErrOrNil at the end.
type Error []error

func (e Error) Error() string {
	switch len(e) {
	case 0:
		return "<nil>"
	case 1:
		return e[0].Error()
	}
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "%d errors occurred:", len(e))
	for _, err := range e {
		fmt.Fprintf(sb, "\n\t* %v", err)
	}
	return sb.String()
}

// Append adds err to the collection, doing nothing when err is nil. Use via
// auto-referencing:
//
//	var errs multierr.Error
//	errs.Append(check())
func (e *Error) Append(err error) {
	switch {
	case e == nil || err == nil:
	case *e == nil:
		*e = Error{err}
	default:
		*e = append(*e, err)
	}
}

// ErrOrNil converts the collection into a plain error. Returning an Error
// directly would compare non-nil even when empty (typed nil), so callers
// should always return through this. A single member is unwrapped.
func (e Error) ErrOrNil() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	}
	return e
}

func (e Error) Unwrap() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	}
	return e[1:]
}

func (e Error) Is(target error) bool {
	for _, err := range e {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (e Error) As(target interface{}) bool {
	for _, err := range e {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
