package dispatch

import (
	"errors"
	"fmt"
)

// ErrTransient and ErrFatal classify consumer failures.
// Unclassified errors are treated as transient.
var (
	ErrTransient = errors.New("transient consumer error")
	ErrFatal     = errors.New("fatal consumer error")
)

// Transient marks err as worth retrying
func Transient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Fatal marks err as unprocessable; the event is dead-lettered without retry
func Fatal(err error) error {
	if err == nil {
		return ErrFatal
	}
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// IsFatal reports whether err was marked with Fatal
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
