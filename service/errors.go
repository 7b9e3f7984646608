package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrUnauthorized is returned when the caller is not signed in.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when an entity is missing or owned by someone else.
	ErrNotFound = errors.New("entity not found")

	// ErrForbidden is returned for storage keys outside the caller's namespace.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyExists is returned when attempting to create a duplicate entity.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrDecisionConflict is returned when a tool call was already decided differently.
	ErrDecisionConflict = errors.New("tool call already decided")
)

// ValidationError wraps field-specific validation errors. Message is shown
// to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// notFoundOr maps gorm's missing-row error onto ErrNotFound and wraps the rest.
func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// existsOr maps gorm's duplicate-key error onto ErrAlreadyExists and wraps the rest.
func existsOr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf(format+": %w", append(args, ErrAlreadyExists)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
