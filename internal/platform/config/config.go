package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"VERIDOC_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"VERIDOC_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"VERIDOC_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"VERIDOC_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL settings. An empty DSN selects the
// in-memory stores, which is the development and test default.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"       env:"DATABASE_DSN"       env-default:""`
	MaxConns int    `yaml:"max_conns" env:"DATABASE_MAX_CONNS" env-default:"25"`
}

// RedisConfig holds settings for the in-flight verification marker. An
// empty address disables the Redis fast path; the store-level conditional
// insert still enforces exclusivity.
type RedisConfig struct {
	Addr      string        `yaml:"addr"       env:"REDIS_ADDR"       env-default:""`
	MarkerTTL time.Duration `yaml:"marker_ttl" env:"REDIS_MARKER_TTL" env-default:"5m"`
}

// KafkaConfig holds audit publishing settings. Empty brokers disable the
// publisher; the audit store remains the source of truth either way.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"     env:"KAFKA_BROKERS" env-separator:","`
	AuditTopic string   `yaml:"audit_topic" env:"KAFKA_AUDIT_TOPIC" env-default:"veridoc.audit.entries"`
}

// AuthConfig holds token validation settings. Token issuance is the
// identity collaborator's concern.
type AuthConfig struct {
	JWTSigningKey string `yaml:"jwt_signing_key" env:"JWT_SIGNING_KEY" env-default:"dev-secret-change-in-production"`
}

// PipelineConfig carries the verification policy parameters. The fraud
// threshold and retry bounds are deployment policy, never hard-coded into
// the state machine.
type PipelineConfig struct {
	FraudThreshold    float64       `yaml:"fraud_threshold"     env:"PIPELINE_FRAUD_THRESHOLD"     env-default:"0.7"`
	MaxAttempts       int           `yaml:"max_attempts"        env:"PIPELINE_MAX_ATTEMPTS"        env-default:"3"`
	ScoringRetries    int           `yaml:"scoring_retries"     env:"PIPELINE_SCORING_RETRIES"     env-default:"3"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"     env:"PIPELINE_BACKOFF_INITIAL"     env-default:"100ms"`
	BackoffMax        time.Duration `yaml:"backoff_max"         env:"PIPELINE_BACKOFF_MAX"         env-default:"5s"`
	Scorer            string        `yaml:"scorer"              env:"PIPELINE_SCORER"              env-default:"heuristic"`
	ExternalScorerURL string        `yaml:"external_scorer_url" env:"PIPELINE_EXTERNAL_SCORER_URL" env-default:""`
}

// Validate rejects configurations that would let documents through with a
// meaningless policy.
func (c *Config) Validate() error {
	if c.Pipeline.FraudThreshold <= 0 || c.Pipeline.FraudThreshold > 1 {
		return fmt.Errorf("fraud threshold must be in (0,1], got %v", c.Pipeline.FraudThreshold)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.Pipeline.MaxAttempts)
	}
	switch c.Pipeline.Scorer {
	case "heuristic", "statistical", "external":
	default:
		return fmt.Errorf("unknown scorer %q", c.Pipeline.Scorer)
	}
	if c.Pipeline.Scorer == "external" && c.Pipeline.ExternalScorerURL == "" {
		return fmt.Errorf("external scorer selected but no URL configured")
	}
	return nil
}
