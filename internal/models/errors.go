package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a malformed create or update payload.
	ErrValidation = errors.New("validation failed")
	// ErrForbiddenField marks a patch that touches a protected field.
	ErrForbiddenField = errors.New("field cannot be updated")
)

// FieldError ties a failure to the payload field that caused it.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Field)
	}
	return fmt.Sprintf("%s: %s %s", e.Err, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason, Err: ErrValidation}
}

func forbidden(field string) error {
	return &FieldError{Field: field, Reason: "is protected", Err: ErrForbiddenField}
}
