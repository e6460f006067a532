package service

import (
	"errors"
	"fmt"

	"github.com/Dan9191/finance-tracker/internal/models"
)

// ValidationError rejects a command before any state change.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError reports a delete target that does not exist. It is a
// non-fatal outcome; nothing was written.
type NotFoundError struct {
	Kind models.Kind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s with id %d", e.Kind, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
