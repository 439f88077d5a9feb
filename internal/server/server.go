package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"personify/internal/app"
	"personify/internal/ratelimit"
	"personify/internal/util"
	"personify/pkg/domain"
	"personify/pkg/storage"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// UploadDir enables static serving of stored uploads when the file
	// backend is in use. Empty disables the /uploads route.
	UploadDir      string
	MaxUploadBytes int64

	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
}

// Server exposes the HTTP API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	maxUploadBytes  int64
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Rate limiting is only
// active when a Redis address is configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
	}
	if cfg.RedisAddr != "" {
		registerLimit := cfg.RegisterRateLimitPerMinute
		if registerLimit <= 0 {
			registerLimit = 5
		}
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
			prefix := "personify:ratelimit:" + name
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		var err error
		if s.registerLimiter, err = newLimiter("register", registerLimit); err != nil {
			return nil, err
		}
		if s.loginLimiter, err = newLimiter("login", loginLimit); err != nil {
			return nil, err
		}
	}
	s.routes(cfg.UploadDir)
	return s, nil
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog("personify", s.mux))))
}

func (s *Server) routes(uploadDir string) {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/db-test", s.handleDBTest)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))

	// persona (auth required)
	s.mux.Handle("/api/persona", s.authenticated(s.handlePersona))
	s.mux.Handle("/api/persona/images", s.authenticated(s.handlePersonaImages))
	s.mux.Handle("/api/persona/images/", s.authenticated(s.handlePersonaImageByID))

	// generation (auth required)
	s.mux.Handle("/api/generate/image", s.authenticated(s.handleGenerateImage))
	s.mux.Handle("/api/generate/text", s.authenticated(s.handleGenerateText))
	s.mux.Handle("/api/generate", s.authenticated(s.handleGenerations))
	s.mux.Handle("/api/generate/", s.authenticated(s.handleGenerationByID))

	if uploadDir != "" {
		s.mux.Handle(storage.URLPrefix+"/", http.StripPrefix(storage.URLPrefix+"/", http.FileServer(http.Dir(uploadDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Personify API is running",
	})
}

func (s *Server) handleDBTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	count, err := s.app.UserCount()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "ERROR",
			"message": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"message":   "Database connected",
		"userCount": count,
	})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "No token provided")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			s.audit(r, "authorize", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r, user)
	})
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Register(req.Email, req.Password, req.Name)
	if err != nil {
		s.audit(r, "register", "fail", "reason", err.Error())
		switch {
		case errors.Is(err, app.ErrEmailPasswordNameRequired):
			writeError(w, http.StatusBadRequest, "Email, password, and name are required")
		case errors.Is(err, app.ErrEmailAlreadyExists):
			writeError(w, http.StatusBadRequest, "User already exists")
		default:
			s.serverError(w, r, "Registration failed", err)
		}
		return
	}
	s.audit(r, "register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "login", "fail", "reason", err.Error())
		if errors.Is(err, app.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.serverError(w, r, "Login failed", err)
		return
	}
	s.audit(r, "login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// persona handlers
func (s *Server) handlePersona(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		persona, err := s.app.GetPersona(user.ID)
		if err != nil {
			if errors.Is(err, app.ErrPersonaNotFound) {
				writeError(w, http.StatusNotFound, "Persona not found")
				return
			}
			s.serverError(w, r, "Failed to get persona", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"persona": persona})
	case http.MethodPost:
		var req app.PersonaInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		persona, created, err := s.app.UpsertPersona(user.ID, req)
		if err != nil {
			s.serverError(w, r, "Failed to create persona", err)
			return
		}
		status := http.StatusOK
		message := "Persona updated successfully"
		if created {
			status = http.StatusCreated
			message = "Persona created successfully"
		}
		writeJSON(w, status, map[string]any{
			"message": message,
			"persona": persona,
		})
	case http.MethodDelete:
		if err := s.app.DeletePersona(r.Context(), user.ID); err != nil {
			if errors.Is(err, app.ErrPersonaNotFound) {
				writeError(w, http.StatusNotFound, "Persona not found")
				return
			}
			s.serverError(w, r, "Failed to delete persona", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Persona deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePersonaImages(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()
	image, err := s.app.AddPersonaImage(r.Context(), user.ID, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		s.serverError(w, r, "Failed to upload image", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Image uploaded successfully",
		"image":   image,
	})
}

func (s *Server) handlePersonaImageByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/persona/images/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeletePersonaImage(r.Context(), user.ID, id); err != nil {
		switch {
		case errors.Is(err, app.ErrImageNotFound):
			writeError(w, http.StatusNotFound, "Image not found")
		case errors.Is(err, app.ErrNotOwner):
			writeError(w, http.StatusForbidden, "Not authorized to delete this image")
		default:
			s.serverError(w, r, "Failed to delete image", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Image deleted successfully"})
}

// generation handlers
func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	usage, err := s.app.CheckUsage(user.ID, domain.GenerationImage)
	if err != nil {
		s.writeUsageError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)
	gen, err := s.app.GenerateImage(r.Context(), user.ID, req.Prompt, req.Model)
	if err != nil {
		if errors.Is(err, app.ErrPromptRequired) {
			writeError(w, http.StatusBadRequest, "Prompt is required")
			return
		}
		s.generationFailed(w, r, "Failed to generate image", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Image generated successfully",
		"generation": gen,
		"imageUrl":   gen.Result,
	})
}

func (s *Server) handleGenerateText(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	usage, err := s.app.CheckUsage(user.ID, domain.GenerationText)
	if err != nil {
		s.writeUsageError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)
	gen, err := s.app.GenerateText(r.Context(), user.ID, req.Prompt, req.Model)
	if err != nil {
		if errors.Is(err, app.ErrPromptRequired) {
			writeError(w, http.StatusBadRequest, "Prompt is required")
			return
		}
		s.generationFailed(w, r, "Failed to generate text", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Text generated successfully",
		"generation": gen,
		"text":       gen.Result,
	})
}

func (s *Server) handleGenerations(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var genType domain.GenerationType
	if raw := r.URL.Query().Get("type"); raw != "" {
		parsed, ok := domain.ParseGenerationType(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "type must be image or text")
			return
		}
		genType = parsed
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	generations, err := s.app.ListGenerations(user.ID, genType, limit)
	if err != nil {
		s.serverError(w, r, "Failed to get generations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(generations),
		"generations": generations,
	})
}

func (s *Server) handleGenerationByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/generate/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		gen, err := s.app.GetGeneration(user.ID, id)
		if err != nil {
			s.writeGenerationError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"generation": gen})
	case http.MethodDelete:
		if err := s.app.DeleteGeneration(user.ID, id); err != nil {
			s.writeGenerationError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Generation deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) writeGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrGenerationNotFound):
		writeError(w, http.StatusNotFound, "Generation not found")
	case errors.Is(err, app.ErrNotOwner):
		writeError(w, http.StatusForbidden, "Not authorized to access this generation")
	default:
		s.serverError(w, r, "generation lookup", err)
	}
}

func (s *Server) writeUsageError(w http.ResponseWriter, r *http.Request, err error) {
	var limitErr *app.DailyLimitError
	if errors.As(err, &limitErr) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":   "Daily limit exceeded",
			"message": limitErr.Error(),
			"limit":   limitErr.Limit,
			"used":    limitErr.Used,
		})
		return
	}
	s.serverError(w, r, "Failed to check usage limits", err)
}

// generationFailed reports a provider failure. The provider's message goes
// back to the caller so the frontend can show it.
func (s *Server) generationFailed(w http.ResponseWriter, r *http.Request, label string, err error) {
	util.LoggerFromContext(r.Context()).Error("generation failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   label,
		"message": err.Error(),
	})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, label string, err error) {
	util.LoggerFromContext(r.Context()).Error("internal error", "op", label, "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   label,
		"message": err.Error(),
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(key) {
		return true
	}
	s.audit(r, "ratelimit", "blocked")
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

// setUsageHeaders reports where the caller stands against the daily ceiling.
// The counters reflect the state at check time, before this request's row.
func setUsageHeaders(w http.ResponseWriter, usage domain.UsageInfo) {
	w.Header().Set("X-Daily-Limit", strconv.Itoa(usage.Limit))
	w.Header().Set("X-Daily-Remaining", strconv.Itoa(usage.Remaining))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		slog.Warn("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		slog.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 10 * 1024 * 1024
	}
	return value
}
