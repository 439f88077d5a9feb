package domain

import (
	"strings"
	"time"
)

type GenerationType string

const (
	GenerationImage GenerationType = "image"
	GenerationText  GenerationType = "text"
)

type GenerationStatus string

const (
	StatusPending   GenerationStatus = "pending"
	StatusCompleted GenerationStatus = "completed"
	StatusFailed    GenerationStatus = "failed"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Persona holds the profile a user wants generations biased towards.
// A user owns at most one persona.
type Persona struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Bio            string         `json:"bio,omitempty"`
	Industry       string         `json:"industry,omitempty"`
	TargetAudience string         `json:"targetAudience,omitempty"`
	BrandTone      string         `json:"brandTone,omitempty"`
	Images         []PersonaImage `json:"personaImages"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type PersonaImage struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// Generation records one request against the AI provider and its outcome.
// Prompt always holds the caller's original text, never the enhanced variant
// sent to the provider.
type Generation struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	Type         GenerationType   `json:"type"`
	Prompt       string           `json:"prompt"`
	Model        string           `json:"model"`
	Result       string           `json:"result,omitempty"`
	Status       GenerationStatus `json:"status"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Params       map[string]any   `json:"params,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// UsageInfo reports where a user stands against a daily generation ceiling.
type UsageInfo struct {
	Limit     int `json:"limit"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// ParseGenerationType validates a type string from a query or request field.
func ParseGenerationType(raw string) (GenerationType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(GenerationImage):
		return GenerationImage, true
	case string(GenerationText):
		return GenerationText, true
	default:
		return "", false
	}
}
