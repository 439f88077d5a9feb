package app

import (
	"fmt"
	"strings"
	"time"

	"personify/internal/util"
	"personify/pkg/ai"
	"personify/pkg/auth"
	"personify/pkg/domain"
	"personify/pkg/storage"
	"personify/pkg/store"
)

const (
	defaultImageModel = "dall-e-3"
	defaultTextModel  = "gpt-4"

	defaultImageDailyLimit = 10
	defaultTextDailyLimit  = 50
)

// Config wires the application core's dependencies. Store, Sessions, Uploads
// and the generators are constructed once at process start and shared.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Uploads  storage.Store
	Images   ai.ImageGenerator
	Texts    ai.TextGenerator

	ImageModel string
	TextModel  string

	ImageDailyLimit int
	TextDailyLimit  int

	// Now overrides the clock; tests pin it to exercise the daily window.
	Now func() time.Time
}

// App is the application core wiring storage, sessions and the AI provider.
type App struct {
	store    store.Store
	sessions store.SessionStore
	uploads  storage.Store
	images   ai.ImageGenerator
	texts    ai.TextGenerator

	imageModel string
	textModel  string

	imageDailyLimit int
	textDailyLimit  int

	now func() time.Time
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaultImageModel
	}
	if cfg.TextModel == "" {
		cfg.TextModel = defaultTextModel
	}
	if cfg.ImageDailyLimit <= 0 {
		cfg.ImageDailyLimit = defaultImageDailyLimit
	}
	if cfg.TextDailyLimit <= 0 {
		cfg.TextDailyLimit = defaultTextDailyLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		store:           cfg.Store,
		sessions:        cfg.Sessions,
		uploads:         cfg.Uploads,
		images:          cfg.Images,
		texts:           cfg.Texts,
		imageModel:      cfg.ImageModel,
		textModel:       cfg.TextModel,
		imageDailyLimit: cfg.ImageDailyLimit,
		textDailyLimit:  cfg.TextDailyLimit,
		now:             cfg.Now,
	}, nil
}

// Register creates a user and issues a session token.
func (a *App) Register(email, password, name string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return domain.User{}, "", ErrEmailPasswordNameRequired
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    a.now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token. Invalid or expired
// tokens resolve to no user.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// UserCount reports the number of registered users (connectivity probe).
func (a *App) UserCount() (int, error) {
	return a.store.UserCount()
}
