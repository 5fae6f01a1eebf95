package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrInvalidHorizon rejects non-positive generation horizons before any work starts.
	ErrInvalidHorizon = errors.New("horizon must be a positive number of days")
	// ErrHorizonTooLong rejects horizons above the configured maximum.
	ErrHorizonTooLong = errors.New("horizon exceeds the allowed maximum")
)

// ValidationError reports bad user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
