// Package credentials finds the API key for a batch.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/traveler-renamer/internal/common"
)

// Source names where a credential came from.
type Source string

const (
	SourceNone        Source = ""
	SourceManual      Source = "manual"
	SourceSecretsFile Source = "secrets"
	SourceEnvFile     Source = "env_file"
	SourceEnvironment Source = "environment"
)

// Resolver checks, in order: manual entry, the TOML secrets file, the .env file, the
// process environment. Files are read on every call.
type Resolver struct {
	SecretsFile string
	EnvFile     string
	Key         string
	Getenv      func(string) string
	Logger      *slog.Logger
}

func NewResolver(cfg common.CredentialsConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	key := cfg.Key
	if key == "" {
		key = "ANTHROPIC_API_KEY"
	}
	return &Resolver{
		SecretsFile: cfg.SecretsFile,
		EnvFile:     cfg.EnvFile,
		Key:         key,
		Getenv:      os.Getenv,
		Logger:      logger,
	}
}

// Resolve returns the first non-blank credential and its source.
func (r *Resolver) Resolve(manual string) (string, Source, bool) {
	if v := strings.TrimSpace(manual); v != "" {
		return v, SourceManual, true
	}
	if v := r.fromSecrets(); v != "" {
		return v, SourceSecretsFile, true
	}
	if v := r.fromEnvFile(); v != "" {
		return v, SourceEnvFile, true
	}
	if r.Getenv != nil {
		if v := strings.TrimSpace(r.Getenv(r.Key)); v != "" {
			return v, SourceEnvironment, true
		}
	}
	return "", SourceNone, false
}

func (r *Resolver) fromSecrets() string {
	if r.SecretsFile == "" {
		return ""
	}
	var secrets map[string]any
	if _, err := toml.DecodeFile(r.SecretsFile, &secrets); err != nil {
		r.logUnreadable("secrets", r.SecretsFile, err)
		return ""
	}
	switch v := secrets[r.Key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		r.Logger.Warn("credentials.secrets.not_string", "file", r.SecretsFile, "key", r.Key, "type", fmt.Sprintf("%T", v))
		return ""
	}
}

func (r *Resolver) fromEnvFile() string {
	if r.EnvFile == "" {
		return ""
	}
	vals, err := godotenv.Read(r.EnvFile)
	if err != nil {
		r.logUnreadable("env_file", r.EnvFile, err)
		return ""
	}
	return strings.TrimSpace(vals[r.Key])
}

func (r *Resolver) logUnreadable(source, path string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	r.Logger.Warn("credentials.source.unreadable", "source", source, "file", path, "err", err)
}
