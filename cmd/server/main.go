package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"

	"github.com/banglabot/quest-service/internal/banglish"
	"github.com/banglabot/quest-service/internal/config"
	"github.com/banglabot/quest-service/internal/httpapi"
	"github.com/banglabot/quest-service/internal/platform/auth"
	"github.com/banglabot/quest-service/internal/platform/events"
	"github.com/banglabot/quest-service/internal/platform/logging"
	"github.com/banglabot/quest-service/internal/platform/server"
	"github.com/banglabot/quest-service/internal/progress"
	"github.com/banglabot/quest-service/internal/quest"
	"github.com/banglabot/quest-service/internal/questclient"
	"github.com/banglabot/quest-service/internal/region"
)

const serviceName = "quest-service"

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		panic(fmt.Errorf("region catalog error: %w", err))
	}

	repo, cleanup, err := newRepository(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("repository init error: %w", err))
	}
	defer cleanup()

	progressService, err := progress.NewService(catalog, repo, progress.NewSystemClock(), progress.NewUUIDGenerator(), cfg.Quest.PassRatio)
	if err != nil {
		panic(fmt.Errorf("progress service init error: %w", err))
	}

	content, closeContent, err := newContentProvider(ctx, cfg, catalog, logger)
	if err != nil {
		panic(fmt.Errorf("content provider init error: %w", err))
	}
	defer closeContent()

	// The engine reports to the local progress service unless a remote backend owns progress.
	var progressClient quest.ProgressClient = progressService
	if remote, ok := content.(*questclient.Client); ok {
		progressClient = remote
	}

	inbox := quest.NewInbox()
	engine, err := quest.NewEngine(quest.Config{
		Catalog:     catalog,
		Content:     content,
		Progress:    progressClient,
		Notifier:    inbox,
		Events:      events.LogPublisher{Logger: logger},
		Clock:       quest.NewSystemClock(),
		Logger:      logger,
		RevealDelay: cfg.Quest.RevealDelay,
	})
	if err != nil {
		panic(fmt.Errorf("quest engine init error: %w", err))
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Mode:     cfg.Auth.Mode,
		JWKSURL:  cfg.Auth.JWKSURL,
		Audience: cfg.Auth.Audience,
		Issuer:   cfg.Auth.Issuer,

		TrustUserHeader: cfg.Auth.TrustUserHeader,
	})
	if err != nil {
		panic(fmt.Errorf("auth verifier error: %w", err))
	}

	converter := newTextConverter(ctx, cfg, logger)

	router := server.NewRouter(serviceName, func(r chi.Router) {
		httpapi.RegisterRoutes(r, httpapi.Dependencies{
			Engine:        engine,
			Progress:      progressService,
			Content:       content,
			Notifications: inbox,
			Converter:     converter,
			Verifier:      verifier,
			Logger:        logger,
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("quest service configured",
		slog.String("datastore", string(cfg.DataStore)),
		slog.String("contentSource", string(cfg.Content.Source)),
		slog.Int("regions", catalog.Len()))

	if err := server.Run(ctx, srv, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

// newTextConverter returns nil when no Gemini key is configured; the convert route then answers 503.
func newTextConverter(ctx context.Context, cfg config.Config, logger *slog.Logger) httpapi.TextConverter {
	if cfg.Content.GeminiKey == "" {
		return nil
	}
	converter, err := banglish.NewConverter(ctx, banglish.Config{
		APIKey: cfg.Content.GeminiKey,
		Model:  cfg.Content.GeminiModel,
	})
	if err != nil {
		logger.Warn("text conversion disabled", slog.String("error", err.Error()))
		return nil
	}
	return converter
}

func loadCatalog(cfg config.Config) (*region.Catalog, error) {
	if cfg.Quest.RegionCatalog != "" {
		return region.LoadFile(cfg.Quest.RegionCatalog)
	}
	return region.Default()
}

func newRepository(ctx context.Context, cfg config.Config) (progress.Repository, func(), error) {
	switch cfg.DataStore {
	case config.DataStoreFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return nil, nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}

		var (
			client *firestore.Client
			err    error
		)
		if cfg.Firestore.Database != "" {
			client, err = firestore.NewClientWithDatabase(ctx, cfg.GCPProjectID, cfg.Firestore.Database)
		} else {
			client, err = firestore.NewClient(ctx, cfg.GCPProjectID)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}

		repo := progress.NewFirestoreRepository(client)
		cleanup := func() {
			_ = client.Close()
		}
		return repo, cleanup, nil
	case config.DataStoreSQLite:
		repo, err := progress.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		repo := progress.NewMemoryRepository()
		return repo, func() {}, nil
	}
}

func newContentProvider(ctx context.Context, cfg config.Config, catalog *region.Catalog, logger *slog.Logger) (quest.ContentProvider, func(), error) {
	switch cfg.Content.Source {
	case config.ContentStorage:
		provider, err := quest.NewStorageProvider(ctx, cfg.Content.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return provider, func() { _ = provider.Close() }, nil
	case config.ContentGemini:
		provider, err := quest.NewGeminiProvider(ctx, catalog, quest.GeminiConfig{
			APIKey: cfg.Content.GeminiKey,
			Model:  cfg.Content.GeminiModel,
		})
		if err != nil {
			logger.Warn("gemini unavailable, falling back to built-in quests", slog.String("error", err.Error()))
			break
		}
		return provider, func() {}, nil
	case config.ContentRemote:
		var opts []questclient.Option
		if cfg.Content.BackendToken != "" {
			opts = append(opts, questclient.WithToken(cfg.Content.BackendToken))
		}
		client, err := questclient.New(cfg.Content.BackendURL, opts...)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}

	provider, err := quest.NewStaticProvider()
	if err != nil {
		return nil, nil, err
	}
	return provider, func() {}, nil
}
