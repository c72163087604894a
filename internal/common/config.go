package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	LLM         LLMConfig
	Batch       BatchConfig
	Credentials CredentialsConfig
	Cache       CacheConfig
	Storage     StorageConfig
}

// DatabaseConfig holds batch history database configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	MaxUploadMB    int64
	AllowedOrigins []string
}

// LLMConfig holds extraction provider configuration
type LLMConfig struct {
	Provider       string // anthropic | bedrock
	Model          string
	BaseURL        string
	APIKey         string
	MaxTokens      int
	Timeout        time.Duration
	BedrockModelID string
	AWSRegion      string
}

// BatchConfig holds batch loop configuration
type BatchConfig struct {
	MinInterval time.Duration
	TempDir     string
}

// CredentialsConfig points at the credential sources consulted after manual entry
type CredentialsConfig struct {
	SecretsFile string
	EnvFile     string
	Key         string
}

// CacheConfig holds extraction cache configuration
type CacheConfig struct {
	RedisAddr string
	Password  string
	DB        int
	TTL       time.Duration
}

// StorageConfig holds archive sink configuration
type StorageConfig struct {
	S3Bucket string
	S3Prefix string
}

// LoadConfig loads configuration from environment variables. A local .env (ENV_FILE) is
// loaded first; variables already set in the process win.
func LoadConfig() *Config {
	envFile := getEnv("ENV_FILE", ".env")
	_ = godotenv.Load(envFile)

	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:       getEnv("GRPC_ADDR", ""),
			MaxUploadMB:    int64(getEnvAsInt("MAX_UPLOAD_MB", 200)),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8501", "http://localhost:5173"}),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
			Model:          getEnv("ANTHROPIC_MODEL", ""),
			BaseURL:        getEnv("ANTHROPIC_BASE_URL", ""),
			APIKey:         getEnv("ANTHROPIC_API_KEY", ""),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 1024),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 0),
			BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		},
		Batch: BatchConfig{
			MinInterval: getEnvAsDuration("EXTRACT_MIN_INTERVAL", 4*time.Second),
			TempDir:     getEnv("BATCH_TEMP_DIR", ""),
		},
		Credentials: CredentialsConfig{
			SecretsFile: getEnv("SECRETS_FILE", ".streamlit/secrets.toml"),
			EnvFile:     envFile,
			Key:         "ANTHROPIC_API_KEY",
		},
		Cache: CacheConfig{
			RedisAddr: getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			TTL:       getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		},
		Storage: StorageConfig{
			S3Bucket: getEnv("ARCHIVE_S3_BUCKET", ""),
			S3Prefix: getEnv("ARCHIVE_S3_PREFIX", "batches/"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration. The API key is not required here: it may
// still arrive per batch from manual entry or the secrets file.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "bedrock":
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be anthropic or bedrock", ErrInvalidInput)
	}
	if c.Batch.MinInterval < 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_MIN_INTERVAL must not be negative", ErrInvalidInput)
	}
	if c.Server.MaxUploadMB <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_MB must be positive", ErrInvalidInput)
	}
	return nil
}

// RequiresAPIKey reports whether the configured provider authenticates with an API key.
func (c *Config) RequiresAPIKey() bool {
	return c.LLM.Provider != "bedrock"
}
