package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "WIZVEC"

const (
	StorePostgres = "pg"
	StoreBadger   = "badger"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Source           string        `envconfig:"SOURCE" yaml:"source"`
	BatchSize        int           `envconfig:"BATCH_SIZE" yaml:"batch_size"`
	MinContentLength int           `envconfig:"MIN_CONTENT_LENGTH" yaml:"min_content_length"`
	Backoff          time.Duration `envconfig:"BACKOFF" yaml:"backoff"`
	Categories       []string      `envconfig:"CATEGORIES" yaml:"categories"`

	Store       string `envconfig:"STORE" yaml:"store"`
	DatabaseURL string `envconfig:"DATABASE_URL" yaml:"database_url"`
	Table       string `envconfig:"TABLE" yaml:"table"`
	BadgerPath  string `envconfig:"BADGER_PATH" yaml:"badger_path"`

	EmbeddingProvider   string `envconfig:"EMBEDDING_PROVIDER" yaml:"embedding_provider"`
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY" yaml:"openai_api_key"`
	EmbeddingBaseURL    string `envconfig:"EMBEDDING_BASE_URL" yaml:"embedding_base_url"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" yaml:"embedding_model"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" yaml:"embedding_dimensions"`

	S3Endpoint     string `envconfig:"S3_ENDPOINT" yaml:"s3_endpoint"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY_ID" yaml:"s3_access_key_id"`
	S3SecretKey    string `envconfig:"S3_SECRET_ACCESS_KEY" yaml:"s3_secret_access_key"`
	S3Region       string `envconfig:"S3_REGION" yaml:"s3_region"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" yaml:"s3_use_path_style"`

	SentryDSN   string `envconfig:"SENTRY_DSN" yaml:"sentry_dsn"`
	Environment string `envconfig:"ENVIRONMENT" yaml:"environment"`

	LogLevel  string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `envconfig:"LOG_FORMAT" yaml:"log_format"`

	Port           string        `envconfig:"PORT" yaml:"port"`
	IngestInterval time.Duration `envconfig:"INGEST_INTERVAL" yaml:"ingest_interval"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Source:              "extracted_spells.json",
		BatchSize:           50,
		MinContentLength:    5,
		Backoff:             2 * time.Second,
		Store:               StorePostgres,
		Table:               "wizard_knowledge",
		BadgerPath:          "./wizvec-data",
		EmbeddingProvider:   ProviderOpenAI,
		EmbeddingDimensions: 768,
		S3Region:            "us-east-1",
		Environment:         "development",
		LogLevel:            "info",
		LogFormat:           "text",
		Port:                "8080",
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then WIZVEC_* environment variables (a .env file is read if present).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// Validate reports the first unusable setting as a CONFIGURATION_ERROR.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return domain.ConfigurationError(err.Error())
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case c.Source == "":
		return errors.New("source is required")
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.MinContentLength < 0:
		return fmt.Errorf("min content length must not be negative, got %d", c.MinContentLength)
	case c.Backoff < 0:
		return fmt.Errorf("backoff must not be negative, got %s", c.Backoff)
	case c.EmbeddingDimensions < 0:
		return fmt.Errorf("embedding dimensions must not be negative, got %d", c.EmbeddingDimensions)
	case c.IngestInterval < 0:
		return fmt.Errorf("ingest interval must not be negative, got %s", c.IngestInterval)
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("WIZVEC_DATABASE_URL is required for the pg store")
		}
	case StoreBadger:
		if c.BadgerPath == "" {
			return errors.New("WIZVEC_BADGER_PATH is required for the badger store")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StorePostgres, StoreBadger)
	}

	switch c.EmbeddingProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.EmbeddingBaseURL == "" {
			return errors.New("WIZVEC_OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("unknown embedding provider %q (want %s or %s)", c.EmbeddingProvider, ProviderOpenAI, ProviderOllama)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" || (c.S3AccessKey != "" && c.S3SecretKey != "")
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
