package store

import (
	"time"

	"personify/pkg/domain"
)

// Store defines persistence operations for users, personas, and generations.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UserCount() (int, error)

	// personas
	SavePersona(domain.Persona) error
	GetPersonaByUser(userID string) (domain.Persona, bool, error)
	DeletePersona(id string) error
	AddPersonaImage(domain.PersonaImage) error
	GetPersonaImage(id string) (domain.PersonaImage, bool, error)
	DeletePersonaImage(id string) error

	// generations
	CreateGeneration(domain.Generation) error
	SetGenerationOutcome(id string, status domain.GenerationStatus, result, errMsg string) error
	GetGeneration(id string) (domain.Generation, bool, error)
	ListGenerationsByUser(userID string, genType domain.GenerationType, limit int) ([]domain.Generation, error)
	DeleteGeneration(id string) error
	CountGenerationsSince(userID string, genType domain.GenerationType, since time.Time) (int, error)
}

// SessionStore issues and resolves identity tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
}
