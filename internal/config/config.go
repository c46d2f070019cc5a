package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/banglabot/quest-service/internal/platform/auth"
	"github.com/banglabot/quest-service/internal/platform/envconfig"
)

// Config encapsulates the runtime configuration for the quest service.
type Config struct {
	Port         string `validate:"required,numeric"`
	GCPProjectID string
	DataStore    DataStore
	Auth         AuthConfig
	Firestore    FirestoreConfig
	SQLite       SQLiteConfig
	Content      ContentConfig
	Quest        QuestConfig
}

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	// DataStoreMemory keeps progress in-memory (useful for local development/testing).
	DataStoreMemory DataStore = "memory"
	// DataStoreFirestore stores progress in Google Cloud Firestore.
	DataStoreFirestore DataStore = "firestore"
	// DataStoreSQLite stores progress in a local SQLite file.
	DataStoreSQLite DataStore = "sqlite"
)

// ContentSource enumerates where quest content comes from.
type ContentSource string

const (
	ContentStatic  ContentSource = "static"
	ContentStorage ContentSource = "storage"
	ContentGemini  ContentSource = "gemini"
	ContentRemote  ContentSource = "remote"
)

// AuthConfig stores authentication middleware setup.
type AuthConfig struct {
	Mode            auth.Mode
	JWKSURL         string
	Audience        string
	Issuer          string
	TrustUserHeader bool
}

// FirestoreConfig tailors Firestore client behavior.
type FirestoreConfig struct {
	EmulatorHost string
	Database     string
}

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string
}

// ContentConfig selects and configures the quest content provider.
type ContentConfig struct {
	Source     ContentSource
	Bucket     string
	BackendURL string `validate:"omitempty,url"`
	// BackendToken authenticates this service against a remote backend.
	BackendToken string
	GeminiKey    string
	GeminiModel  string
}

// QuestConfig holds gameplay settings.
type QuestConfig struct {
	RegionCatalog string
	PassRatio     float64       `validate:"gt=0,lte=1"`
	RevealDelay   time.Duration `validate:"gte=0"`
}

// Load reads environment variables into Config with validation.
func Load() (Config, error) {
	passRatio, err := envconfig.GetFloat("QUEST_PASS_RATIO", 0.6)
	if err != nil {
		return Config{}, err
	}
	revealDelay, err := envconfig.GetDuration("QUEST_REVEAL_DELAY", 1500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	trustUserHeader, err := envconfig.GetBool("AUTH_TRUST_USER_HEADER", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:         envconfig.Get("PORT", "8080"),
		GCPProjectID: envconfig.Get("GCP_PROJECT_ID", ""),
		DataStore:    DataStore(strings.ToLower(envconfig.Get("DATASTORE", string(DataStoreMemory)))),
		Auth: AuthConfig{
			Mode:     auth.Mode(strings.ToLower(envconfig.Get("AUTH_MODE", string(auth.ModeNoop)))),
			JWKSURL:  envconfig.Get("CLERK_JWKS_URL", ""),
			Audience: envconfig.Get("CLERK_AUDIENCE", ""),
			Issuer:   envconfig.Get("CLERK_ISSUER", ""),

			TrustUserHeader: trustUserHeader,
		},
		Firestore: FirestoreConfig{
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
			Database:     envconfig.Get("FIRESTORE_DATABASE", ""),
		},
		SQLite: SQLiteConfig{
			Path: envconfig.Get("SQLITE_PATH", "quest.db"),
		},
		Content: ContentConfig{
			Source:       ContentSource(strings.ToLower(envconfig.Get("QUEST_CONTENT_SOURCE", string(ContentStatic)))),
			Bucket:       envconfig.Get("QUEST_CONTENT_BUCKET", ""),
			BackendURL:   envconfig.Get("QUEST_BACKEND_URL", ""),
			BackendToken: envconfig.Get("QUEST_BACKEND_TOKEN", ""),
			GeminiKey:    envconfig.Get("GEMINI_API_KEY", ""),
			GeminiModel:  envconfig.Get("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Quest: QuestConfig{
			RegionCatalog: envconfig.Get("QUEST_REGION_CATALOG", ""),
			PassRatio:     passRatio,
			RevealDelay:   revealDelay,
		},
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if err := envconfig.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.DataStore {
	case DataStoreMemory:
		// no-op
	case DataStoreFirestore:
		if cfg.GCPProjectID == "" {
			return fmt.Errorf("gcp project id required when datastore=firestore")
		}
	case DataStoreSQLite:
		if strings.TrimSpace(cfg.SQLite.Path) == "" {
			return fmt.Errorf("SQLITE_PATH is required when datastore=sqlite")
		}
	default:
		return fmt.Errorf("unsupported datastore: %s", cfg.DataStore)
	}

	switch cfg.Content.Source {
	case ContentStatic:
		// no-op
	case ContentStorage:
		if strings.TrimSpace(cfg.Content.Bucket) == "" {
			return fmt.Errorf("QUEST_CONTENT_BUCKET is required when QUEST_CONTENT_SOURCE=storage")
		}
	case ContentGemini:
		if strings.TrimSpace(cfg.Content.GeminiKey) == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when QUEST_CONTENT_SOURCE=gemini")
		}
	case ContentRemote:
		if strings.TrimSpace(cfg.Content.BackendURL) == "" {
			return fmt.Errorf("QUEST_BACKEND_URL is required when QUEST_CONTENT_SOURCE=remote")
		}
	default:
		return fmt.Errorf("unsupported quest content source: %s", cfg.Content.Source)
	}

	switch cfg.Auth.Mode {
	case auth.ModeClerk:
		if cfg.Auth.JWKSURL == "" {
			return fmt.Errorf("CLERK_JWKS_URL is required when AUTH_MODE=clerk")
		}
	case auth.ModeNoop:
		// no-op
	default:
		return fmt.Errorf("unsupported auth mode: %s", cfg.Auth.Mode)
	}

	return nil
}
