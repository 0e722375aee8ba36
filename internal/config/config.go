package config

import (
	"fmt"
	"time"

	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the application
type Config struct {
	// MongoDB
	MongoURI    string `env:"MONGO_URI"`
	MongoDBName string `env:"MONGO_DB_NAME"`

	// Redis
	RedisHost            string `env:"REDIS_HOST" envDefault:"localhost:6379"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	RedisIngestStreamKey string `env:"REDIS_INGEST_STREAM_KEY" envDefault:"veritas:ingest"`
	RedisConsumerGroup   string `env:"REDIS_CONSUMER_GROUP" envDefault:"veritas:group"`
	RedisDeadLetterKey   string `env:"REDIS_DEAD_LETTER_KEY" envDefault:"veritas:dlq"`
	StreamRetentionHours int    `env:"STREAM_RETENTION_HOURS" envDefault:"24"`

	// JWT
	JWTSecret     string `env:"JWT_SECRET"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"veritas"`
	JWTTTLMinutes int    `env:"JWT_TTL_MINUTES" envDefault:"60"`

	// Admin bootstrap, skipped when either is empty
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Rate Limiting
	RateLimitRPS float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`

	// Concurrency
	MaxConcurrentChecks int   `env:"MAX_CONCURRENT_CHECKS" envDefault:"5"`
	CheckTimeoutSeconds int   `env:"CHECK_TIMEOUT_SECONDS" envDefault:"60"`
	MaxUploadBytes      int64 `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`

	// Detection
	RelevanceThreshold  float64 `env:"RELEVANCE_THRESHOLD" envDefault:"0.3"`
	PlagiarismThreshold float64 `env:"PLAGIARISM_THRESHOLD" envDefault:"0.5"`
	MinMatchLength      int     `env:"MIN_MATCH_LENGTH" envDefault:"20"`
	ChunkSentences      int     `env:"CHUNK_SENTENCES" envDefault:"3"`
	MaxChunks           int     `env:"MAX_CHUNKS" envDefault:"500"`
	MaxCorpusDocuments  int     `env:"MAX_CORPUS_DOCUMENTS" envDefault:"5000"`
	TFIDFMaxFeatures    int     `env:"TFIDF_MAX_FEATURES" envDefault:"0"`
	TFIDFMaxDF          float64 `env:"TFIDF_MAX_DF" envDefault:"1.0"`
	DuplicatePolicy     string  `env:"DUPLICATE_POLICY" envDefault:"name"`

	// Ingestion
	IngestWatchDir string `env:"INGEST_WATCH_DIR"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	CORSOrigin  string `env:"CORS_ORIGIN" envDefault:"*"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.MongoDBName == "" {
		return fmt.Errorf("MONGO_DB_NAME is required")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWTTTLMinutes <= 0 {
		return fmt.Errorf("JWT_TTL_MINUTES must be greater than 0")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be greater than 0")
	}
	if c.MaxConcurrentChecks <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_CHECKS must be greater than 0")
	}
	if c.CheckTimeoutSeconds <= 0 {
		return fmt.Errorf("CHECK_TIMEOUT_SECONDS must be greater than 0")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be greater than 0")
	}
	if c.StreamRetentionHours <= 0 {
		return fmt.Errorf("STREAM_RETENTION_HOURS must be greater than 0")
	}
	if c.TFIDFMaxFeatures < 0 {
		return fmt.Errorf("TFIDF_MAX_FEATURES must not be negative")
	}
	if c.TFIDFMaxDF <= 0 || c.TFIDFMaxDF > 1 {
		return fmt.Errorf("TFIDF_MAX_DF must be within (0, 1]")
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("invalid detection settings: %w", err)
	}
	return nil
}

// Thresholds returns the detection parameters for the engine
func (c *Config) Thresholds() plagiarism.Thresholds {
	return plagiarism.Thresholds{
		RelevanceThreshold:  c.RelevanceThreshold,
		PlagiarismThreshold: c.PlagiarismThreshold,
		MinMatchLength:      c.MinMatchLength,
		ChunkSentences:      c.ChunkSentences,
		MaxChunks:           c.MaxChunks,
		MaxCorpusDocuments:  c.MaxCorpusDocuments,
		DuplicatePolicy:     plagiarism.DuplicatePolicy(c.DuplicatePolicy),
		Scorer: plagiarism.ScorerOptions{
			MaxFeatures:          c.TFIDFMaxFeatures,
			MaxDocumentFrequency: c.TFIDFMaxDF,
		},
	}
}

func (c *Config) StreamRetention() time.Duration {
	return time.Duration(c.StreamRetentionHours) * time.Hour
}

func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutSeconds) * time.Second
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}
