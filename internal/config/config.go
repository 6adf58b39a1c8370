// internal/config/config.go
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Store    StoreConfig
	Pipeline PipelineConfig
	Retry    RetryConfig
	App      AppConfig
}

type StoreConfig struct {
	Backend         string // "drive" or "s3"
	CredentialsFile string
	PageSize        int64

	// S3-compatible backend settings.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

type PipelineConfig struct {
	BatchSize     int
	JobTimeout    time.Duration
	MaxCharBudget int
	ChunkSize     int
}

type RetryConfig struct {
	MetadataAttempts int
	MetadataBackoff  time.Duration
	MetadataMaxDelay time.Duration
	StreamAttempts   int
	StreamBackoff    time.Duration
	StreamMaxDelay   time.Duration
	ChunkAttempts    int
	ChunkBackoff     time.Duration
	ChunkMaxDelay    time.Duration
}

type AppConfig struct {
	StagingDir string
	ReportDir  string
	LogLevel   string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("STORE_BACKEND", "drive")
		viper.SetDefault("STORE_CREDENTIALS_FILE", "credentials.json")
		viper.SetDefault("STORE_PAGE_SIZE", 100)
		viper.SetDefault("S3_ENDPOINT", "")
		viper.SetDefault("S3_ACCESS_KEY", "")
		viper.SetDefault("S3_SECRET_KEY", "")
		viper.SetDefault("S3_BUCKET", "")
		viper.SetDefault("S3_USE_SSL", true)
		viper.SetDefault("PIPELINE_BATCH_SIZE", 5)
		viper.SetDefault("PIPELINE_JOB_TIMEOUT_SECONDS", 180)
		viper.SetDefault("PIPELINE_MAX_CHAR_BUDGET", 100000)
		viper.SetDefault("PIPELINE_CHUNK_SIZE", 512)
		viper.SetDefault("RETRY_METADATA_ATTEMPTS", 3)
		viper.SetDefault("RETRY_METADATA_BACKOFF_SECONDS", 2)
		viper.SetDefault("RETRY_METADATA_MAX_DELAY_SECONDS", 10)
		viper.SetDefault("RETRY_STREAM_ATTEMPTS", 2)
		viper.SetDefault("RETRY_STREAM_BACKOFF_SECONDS", 5)
		viper.SetDefault("RETRY_STREAM_MAX_DELAY_SECONDS", 30)
		viper.SetDefault("RETRY_CHUNK_ATTEMPTS", 5)
		viper.SetDefault("RETRY_CHUNK_BACKOFF_SECONDS", 1)
		viper.SetDefault("RETRY_CHUNK_MAX_DELAY_SECONDS", 30)
		viper.SetDefault("APP_STAGING_DIR", "./data/staging")
		viper.SetDefault("APP_REPORT_DIR", "./data/reports")
		viper.SetDefault("APP_LOG_LEVEL", "info")

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Store: StoreConfig{
				Backend:         viper.GetString("STORE_BACKEND"),
				CredentialsFile: viper.GetString("STORE_CREDENTIALS_FILE"),
				PageSize:        viper.GetInt64("STORE_PAGE_SIZE"),
				S3Endpoint:      viper.GetString("S3_ENDPOINT"),
				S3AccessKey:     viper.GetString("S3_ACCESS_KEY"),
				S3SecretKey:     viper.GetString("S3_SECRET_KEY"),
				S3Bucket:        viper.GetString("S3_BUCKET"),
				S3UseSSL:        viper.GetBool("S3_USE_SSL"),
			},
			Pipeline: PipelineConfig{
				BatchSize:     viper.GetInt("PIPELINE_BATCH_SIZE"),
				JobTimeout:    time.Duration(viper.GetInt("PIPELINE_JOB_TIMEOUT_SECONDS")) * time.Second,
				MaxCharBudget: viper.GetInt("PIPELINE_MAX_CHAR_BUDGET"),
				ChunkSize:     viper.GetInt("PIPELINE_CHUNK_SIZE"),
			},
			Retry: RetryConfig{
				MetadataAttempts: viper.GetInt("RETRY_METADATA_ATTEMPTS"),
				MetadataBackoff:  time.Duration(viper.GetInt("RETRY_METADATA_BACKOFF_SECONDS")) * time.Second,
				MetadataMaxDelay: time.Duration(viper.GetInt("RETRY_METADATA_MAX_DELAY_SECONDS")) * time.Second,
				StreamAttempts:   viper.GetInt("RETRY_STREAM_ATTEMPTS"),
				StreamBackoff:    time.Duration(viper.GetInt("RETRY_STREAM_BACKOFF_SECONDS")) * time.Second,
				StreamMaxDelay:   time.Duration(viper.GetInt("RETRY_STREAM_MAX_DELAY_SECONDS")) * time.Second,
				ChunkAttempts:    viper.GetInt("RETRY_CHUNK_ATTEMPTS"),
				ChunkBackoff:     time.Duration(viper.GetInt("RETRY_CHUNK_BACKOFF_SECONDS")) * time.Second,
				ChunkMaxDelay:    time.Duration(viper.GetInt("RETRY_CHUNK_MAX_DELAY_SECONDS")) * time.Second,
			},
			App: AppConfig{
				StagingDir: viper.GetString("APP_STAGING_DIR"),
				ReportDir:  viper.GetString("APP_REPORT_DIR"),
				LogLevel:   viper.GetString("APP_LOG_LEVEL"),
			},
		}
	})

	return instance
}

// Validate rejects configurations that would make batch processing
// meaningless. It runs before any remote call is made.
func (c *Config) Validate() error {
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.JobTimeout <= 0 {
		return fmt.Errorf("job timeout must be positive, got %s", c.Pipeline.JobTimeout)
	}
	if c.Retry.MetadataAttempts < 1 || c.Retry.StreamAttempts < 1 {
		return fmt.Errorf("retry attempt counts must be at least 1")
	}
	switch c.Store.Backend {
	case "drive", "s3":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}
