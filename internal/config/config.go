package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	NarratorRulebook = "rulebook"
	NarratorGemini   = "gemini"

	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"SECTS_GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	Narrator     string `env:"SECTS_NARRATOR"     envDefault:"rulebook"`

	// RulebookPath overrides the embedded location table.
	RulebookPath    string        `env:"SECTS_RULEBOOK"`
	Seed            int64         `env:"SECTS_SEED"`
	ProviderTimeout time.Duration `env:"SECTS_PROVIDER_TIMEOUT" envDefault:"30s"`

	Storage     string `env:"SECTS_STORAGE"      envDefault:"file"`
	SaveDir     string `env:"SECTS_SAVE_DIR"     envDefault:".saves"`
	SQLitePath  string `env:"SECTS_SQLITE_PATH"  envDefault:"sects.db"`
	PostgresDSN string `env:"SECTS_POSTGRES_DSN"`

	HTTPAddr string `env:"SECTS_HTTP_ADDR"  envDefault:":8080"`
	LogLevel string `env:"SECTS_LOG_LEVEL"  envDefault:"info"`
	LogFile  string `env:"SECTS_LOG_FILE"   envDefault:"sects.log"`
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Narrator {
	case NarratorRulebook:
	case NarratorGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY environment variable is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("SECTS_NARRATOR must be %q or %q, got %q", NarratorRulebook, NarratorGemini, c.Narrator))
	}

	switch c.Storage {
	case StorageFile:
		if c.SaveDir == "" {
			errs = append(errs, errors.New("SECTS_SAVE_DIR is empty"))
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SECTS_SQLITE_PATH is empty"))
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("SECTS_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("SECTS_STORAGE must be one of file, sqlite, postgres; got %q", c.Storage))
	}

	if c.ProviderTimeout < 0 {
		errs = append(errs, fmt.Errorf("SECTS_PROVIDER_TIMEOUT must not be negative, got %s", c.ProviderTimeout))
	}
	return errors.Join(errs...)
}
