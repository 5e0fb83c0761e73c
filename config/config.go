package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Firebase  FirebaseConfig
	Services  ServicesConfig
	Workspace WorkspaceConfig
	App       AppConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	DSN      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type FirebaseConfig struct {
	CredentialsPath string
	// CredentialsJSON holds an inline service account key and wins over CredentialsPath.
	CredentialsJSON string
	ProjectID       string
	// Disabled switches auth to the X-User-Id header fallback. Development only.
	Disabled bool
}

// ServicesConfig points at the opaque remote services the workspace engine talks to.
type ServicesConfig struct {
	GenerationURL string
	BuildURL      string
	MirrorURL     string

	// Optional OAuth2 client credentials for the source-control mirror.
	MirrorClientID     string
	MirrorClientSecret string
	MirrorTokenURL     string

	// GenerationRPS caps outbound generation requests per second (0 = unlimited).
	GenerationRPS   float64
	GenerationBurst int
}

type WorkspaceConfig struct {
	SyncDebounce     time.Duration
	PreviewSettle    time.Duration
	HistoryLimit     int
	SessionTTL       time.Duration
	ProgressInterval time.Duration
	DefaultModel     string
}

type AppConfig struct {
	ServiceName string
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:3000")},
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			CredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			Disabled:        getEnv("AUTH_DISABLED", "false") == "true",
		},
		Services: ServicesConfig{
			GenerationURL:      getEnv("GENERATION_SERVICE_URL", "http://localhost:8090"),
			BuildURL:           getEnv("BUILD_SERVICE_URL", "http://localhost:8091"),
			MirrorURL:          getEnv("MIRROR_SERVICE_URL", "http://localhost:8092"),
			MirrorClientID:     getEnv("MIRROR_CLIENT_ID", ""),
			MirrorClientSecret: getEnv("MIRROR_CLIENT_SECRET", ""),
			MirrorTokenURL:     getEnv("MIRROR_TOKEN_URL", ""),
			GenerationRPS:      getEnvAsFloat("GENERATION_RPS", 2),
			GenerationBurst:    getEnvAsInt("GENERATION_BURST", 4),
		},
		Workspace: WorkspaceConfig{
			SyncDebounce:     getEnvAsDuration("SYNC_DEBOUNCE", time.Second),
			PreviewSettle:    getEnvAsDuration("PREVIEW_SETTLE", 2*time.Second),
			HistoryLimit:     getEnvAsInt("HISTORY_LIMIT", 50),
			SessionTTL:       getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			ProgressInterval: getEnvAsDuration("AI_PROGRESS_INTERVAL", 3*time.Second),
			DefaultModel:     getEnv("AI_DEFAULT_MODEL", "standard"),
		},
		App: AppConfig{
			ServiceName: getEnv("SERVICE_NAME", "console-backend"),
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	if !c.Firebase.Disabled && c.Firebase.CredentialsPath == "" && c.Firebase.CredentialsJSON == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH or FIREBASE_CREDENTIALS_JSON is required unless AUTH_DISABLED=true")
	}

	if c.Workspace.PreviewSettle <= c.Workspace.SyncDebounce {
		return fmt.Errorf("PREVIEW_SETTLE (%s) must be longer than SYNC_DEBOUNCE (%s)",
			c.Workspace.PreviewSettle, c.Workspace.SyncDebounce)
	}

	if c.Workspace.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}
