package contentstore

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("contentstore: not found")
	ErrStoreUnavailable = errors.New("contentstore: unavailable")
	ErrStoreRejected    = errors.New("contentstore: payload rejected")
	ErrInvalidAddress   = errors.New("contentstore: invalid address")
)

// BackendError carries backend context for a failed call. errors.Is matches
// both its Kind sentinel and the underlying cause.
type BackendError struct {
	Kind       error
	Backend    string
	Op         string
	StatusCode int
	Underlying error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Underlying != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Underlying)
	}
	return msg
}

func (e *BackendError) Unwrap() []error {
	if e.Underlying == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Underlying}
}

func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }
