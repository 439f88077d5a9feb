package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"personify/internal/app"
	"personify/internal/config"
	"personify/internal/server"
	"personify/internal/util"
	"personify/pkg/ai"
	"personify/pkg/storage"
	"personify/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init database: %v", err)
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}
	uploads, staticDir, err := newUploadStore(cfg)
	if err != nil {
		log.Fatalf("failed to init upload storage: %v", err)
	}

	provider := ai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)

	appCore, err := app.New(app.Config{
		Store:           db,
		Sessions:        sessions,
		Uploads:         uploads,
		Images:          provider,
		Texts:           provider,
		ImageModel:      cfg.ImageModel,
		TextModel:       cfg.TextModel,
		ImageDailyLimit: cfg.ImageDailyLimit,
		TextDailyLimit:  cfg.TextDailyLimit,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		UploadDir:                  staticDir,
		MaxUploadBytes:             cfg.MaxUploadBytes,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	probeDependencies(appCore, provider)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("personify server listening", "addr", addr, "storage", cfg.StorageBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// newUploadStore picks the storage backend. The second return is the
// directory to serve statically, empty when uploads live in object storage.
func newUploadStore(cfg config.FileConfig) (storage.Store, string, error) {
	switch cfg.StorageBackend {
	case "minio":
		s, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	default:
		s, err := storage.NewFileStore(cfg.UploadDir)
		if err != nil {
			return nil, "", err
		}
		return s, s.BasePath(), nil
	}
}

// probeDependencies checks database and provider reachability concurrently.
// Failures are logged, not fatal; the server still starts.
func probeDependencies(appCore *app.App, provider *ai.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := appCore.UserCount()
		if err != nil {
			return fmt.Errorf("database probe: %w", err)
		}
		slog.Info("database reachable", "user_count", count)
		return nil
	})
	g.Go(func() error {
		if err := provider.Ping(ctx); err != nil {
			return fmt.Errorf("provider probe: %w", err)
		}
		slog.Info("ai provider reachable")
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Warn("startup probe failed", "err", err)
	}
}
