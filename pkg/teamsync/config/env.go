package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig mirrors the environment variables understood by WithEnv.
// Fields are pre-filled from the current configuration, so variables that
// are not set leave the existing value in place.
type envConfig struct {
	Port           string        `env:"PORT" env-description:"HTTP listen port"`
	Environment    string        `env:"ENVIRONMENT" env-description:"development, production or testing"`
	LogLevel       string        `env:"LOG_LEVEL" env-description:"debug, info, warn or error"`
	StorageURL     string        `env:"STORAGE_URL" env-description:"memory://, file:///path or s3://bucket?region=..&endpoint=..&path_style=true"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" env-description:"maximum size of one upload request body"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-description:"per-request timeout"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-description:"S3 access key"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-description:"S3 secret key"`
	AWSRegion          string `env:"AWS_REGION" env-description:"S3 region"`
	S3CreateBucket     bool   `env:"S3_CREATE_BUCKET" env-description:"create the S3 bucket at startup"`
}

// WithEnv applies environment variable overrides.
//
//	PORT             - Server port (default: "8080")
//	ENVIRONMENT      - Runtime environment (default: "development")
//	LOG_LEVEL        - Log level (default: "info")
//	STORAGE_URL      - "memory://", "file:///path/to/data" (default "file://./data") or "s3://bucket?..."
//	MAX_UPLOAD_BYTES - Upload body cap (default: 32 MiB)
//	REQUEST_TIMEOUT  - Request timeout (default: "60s")
//
// S3 credentials come from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_REGION.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		env := envConfig{
			Port:               c.Port,
			Environment:        c.Environment,
			LogLevel:           c.LogLevel,
			MaxUploadBytes:     c.MaxUploadBytes,
			RequestTimeout:     c.RequestTimeout,
			AWSAccessKeyID:     c.Storage.S3.AccessKeyID,
			AWSSecretAccessKey: c.Storage.S3.SecretAccessKey,
			AWSRegion:          c.Storage.S3.Region,
			S3CreateBucket:     c.Storage.S3.CreateBucket,
		}
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		c.Port = env.Port
		c.Environment = env.Environment
		c.LogLevel = env.LogLevel
		c.MaxUploadBytes = env.MaxUploadBytes
		c.RequestTimeout = env.RequestTimeout

		if env.StorageURL != "" {
			if err := applyStorageURL(env.StorageURL, &c.Storage); err != nil {
				return err
			}
		}
		c.Storage.S3.AccessKeyID = env.AWSAccessKeyID
		c.Storage.S3.SecretAccessKey = env.AWSSecretAccessKey
		if env.AWSRegion != "" && c.Storage.S3.Region == "" {
			c.Storage.S3.Region = env.AWSRegion
		}
		c.Storage.S3.CreateBucket = env.S3CreateBucket

		return nil
	}
}

// EnvUsage describes the environment variables read by WithEnv
func EnvUsage() (string, error) {
	return cleanenv.GetDescription(&envConfig{}, nil)
}
