package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Store:    StoreConfig{Backend: "drive"},
		Pipeline: PipelineConfig{BatchSize: 5, JobTimeout: 180 * time.Second},
		Retry:    RetryConfig{MetadataAttempts: 3, StreamAttempts: 2, ChunkAttempts: 5},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "drive", cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Pipeline.BatchSize)
	assert.Equal(t, 180*time.Second, cfg.Pipeline.JobTimeout)
	assert.Equal(t, 100000, cfg.Pipeline.MaxCharBudget)
	assert.Equal(t, 3, cfg.Retry.MetadataAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.MetadataBackoff)
	assert.Equal(t, 2, cfg.Retry.StreamAttempts)
	assert.Equal(t, 30*time.Second, cfg.Retry.StreamMaxDelay)
	assert.Equal(t, 5, cfg.Retry.ChunkAttempts)
}

func TestLoadReturnsSameInstance(t *testing.T) {
	assert.Same(t, Load(), Load())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	bad := validConfig()
	bad.Pipeline.BatchSize = 0
	assert.ErrorContains(t, bad.Validate(), "batch size")

	bad = validConfig()
	bad.Pipeline.JobTimeout = 0
	assert.ErrorContains(t, bad.Validate(), "job timeout")

	bad = validConfig()
	bad.Retry.MetadataAttempts = 0
	assert.ErrorContains(t, bad.Validate(), "retry attempt")

	bad = validConfig()
	bad.Store.Backend = "ftp"
	assert.ErrorContains(t, bad.Validate(), "unknown store backend")
}
