package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			FraudThreshold: 0.7,
			MaxAttempts:    3,
			Scorer:         "heuristic",
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("accepts defaults", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("rejects threshold outside unit interval", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.FraudThreshold = 1.5
		assert.Error(t, cfg.Validate())

		cfg.Pipeline.FraudThreshold = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects zero attempts", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.MaxAttempts = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown scorer", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.Scorer = "oracle"
		assert.Error(t, cfg.Validate())
	})

	t.Run("external scorer requires URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.Scorer = "external"
		assert.Error(t, cfg.Validate())

		cfg.Pipeline.ExternalScorerURL = "http://scorer.internal/v1/score"
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("VERIDOC_ADDR", ":9090")
	t.Setenv("PIPELINE_FRAUD_THRESHOLD", "0.85")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.InDelta(t, 0.85, cfg.Pipeline.FraudThreshold, 1e-9)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
}
