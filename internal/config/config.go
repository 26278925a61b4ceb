package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// APIKey is the static bearer token protecting every endpoint except
	// /health. Empty disables authentication (local development only).
	APIKey string `envconfig:"API_KEY"`

	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbedTimeout        time.Duration `envconfig:"EMBED_TIMEOUT" default:"10s"`

	// Retrieval tunables. Defaults match the values the corpus was
	// calibrated with.
	RetrievalTopK          int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	RetrievalMinSimilarity float64 `envconfig:"RETRIEVAL_MIN_SIMILARITY" default:"0.5"`
	RetrievalCandidates    int     `envconfig:"RETRIEVAL_CANDIDATES" default:"20"`

	// S3 document archive for ingested source files.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"medkb-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN              string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment      string  `envconfig:"SENTRY_ENVIRONMENT"`
	SentryTracesSampleRate float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"1.0"`

	// Embedding backfill worker.
	WorkerEnabled      bool          `envconfig:"WORKER_ENABLED" default:"true"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"30s"`
	WorkerBatchSize    int           `envconfig:"WORKER_BATCH_SIZE" default:"16"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MEDKB", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAuth() bool {
	return c.APIKey != ""
}
