package app

import (
	"errors"
	"fmt"

	"personify/pkg/domain"
)

var (
	ErrEmailPasswordNameRequired = errors.New("email, password and name are required")
	ErrEmailAlreadyExists        = errors.New("email already registered")
	ErrInvalidCredentials        = errors.New("invalid email or password")

	ErrPromptRequired = errors.New("prompt is required")
	ErrNoFileProvided = errors.New("no image file provided")

	ErrPersonaNotFound    = errors.New("persona not found")
	ErrImageNotFound      = errors.New("image not found")
	ErrGenerationNotFound = errors.New("generation not found")

	// ErrNotOwner is returned when a record exists but belongs to another user.
	ErrNotOwner = errors.New("permission denied")
)

// DailyLimitError reports a rejected generation attempt with the ceiling and
// the count observed at check time.
type DailyLimitError struct {
	Type  domain.GenerationType
	Limit int
	Used  int
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("You have reached your daily limit of %d %s generations. Limit resets at midnight.", e.Limit, e.Type)
}
