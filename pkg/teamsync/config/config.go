package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/teamsync/pkg/teamsync"
	fsstorage "github.com/tendant/teamsync/pkg/teamsync/storage/fs"
	memorystorage "github.com/tendant/teamsync/pkg/teamsync/storage/memory"
	s3storage "github.com/tendant/teamsync/pkg/teamsync/storage/s3"
)

// Storage backend types
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		LogLevel:    "info",
		Storage: StorageConfig{
			Type:    StorageFS,
			BaseDir: "./data",
		},
		MaxUploadBytes: 32 << 20,
		RequestTimeout: 60 * time.Second,
	}
}

// ServerConfig represents server configuration for the teamsync service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	LogLevel    string // debug, info, warn, error

	Storage StorageConfig

	// MaxUploadBytes caps the body of a single upload request
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// StorageConfig selects and configures the asset backend
type StorageConfig struct {
	Type    string // "memory", "fs", "s3"
	BaseDir string // fs only
	S3      S3Config
}

// S3Config configures the S3 backend
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	CreateBucket    bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageFS:
		if c.Storage.BaseDir == "" {
			return errors.New("base directory is required for fs storage")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	return nil
}

// SlogLevel returns the configured log level
func (c *ServerConfig) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// BuildBlobStore creates the configured asset backend
func (c *ServerConfig) BuildBlobStore(ctx context.Context) (teamsync.BlobStore, error) {
	switch c.Storage.Type {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		backend, err := fsstorage.New(fsstorage.Config{BaseDir: c.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("failed to build fs storage: %w", err)
		}
		return backend, nil

	case StorageS3:
		s3 := c.Storage.S3
		backend, err := s3storage.New(ctx, s3storage.Config{
			Region:                 s3.Region,
			Bucket:                 s3.Bucket,
			AccessKeyID:            s3.AccessKeyID,
			SecretAccessKey:        s3.SecretAccessKey,
			Endpoint:               s3.Endpoint,
			UsePathStyle:           s3.UsePathStyle,
			KeyPrefix:              s3.KeyPrefix,
			CreateBucketIfNotExist: s3.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build s3 storage: %w", err)
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}

// WithPort sets the listen port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		c.Port = port
		return nil
	}
}

// WithStorageURL configures storage from a URL:
//
//	memory://
//	file:///var/lib/teamsync
//	s3://bucket?region=eu-north-1&endpoint=http://localhost:9000&path_style=true&prefix=teamsync/
func WithStorageURL(storageURL string) Option {
	return func(c *ServerConfig) error {
		return applyStorageURL(storageURL, &c.Storage)
	}
}

func applyStorageURL(storageURL string, sc *StorageConfig) error {
	switch {
	case storageURL == "" || storageURL == "memory" || storageURL == "memory://":
		sc.Type = StorageMemory
		return nil

	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return errors.New("filesystem path cannot be empty in storage URL")
		}
		sc.Type = StorageFS
		sc.BaseDir = path
		return nil

	case strings.HasPrefix(storageURL, "s3://"):
		u, err := url.Parse(storageURL)
		if err != nil {
			return fmt.Errorf("invalid storage URL: %w", err)
		}
		if u.Host == "" {
			return errors.New("S3 bucket name cannot be empty in storage URL")
		}
		q := u.Query()
		sc.Type = StorageS3
		sc.S3.Bucket = u.Host
		if v := q.Get("region"); v != "" {
			sc.S3.Region = v
		}
		if v := q.Get("endpoint"); v != "" {
			sc.S3.Endpoint = v
		}
		if v := q.Get("prefix"); v != "" {
			sc.S3.KeyPrefix = v
		}
		if v := q.Get("path_style"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid path_style in storage URL: %w", err)
			}
			sc.S3.UsePathStyle = b
		}
		return nil
	}

	return fmt.Errorf("unsupported storage URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}
