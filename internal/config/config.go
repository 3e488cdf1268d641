// Package config loads inventorycore settings from the environment and
// optional .env files.
package config

import (
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"inventorycore/internal/blob"
	"inventorycore/internal/logging"
)

// DefaultEnvFiles are read, when present, before the environment is parsed.
var DefaultEnvFiles = []string{".env", ".env.local"}

// StorageOptions selects the record store backend.
type StorageOptions struct {
	Driver      string `env:"INVENTORYCORE_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"INVENTORYCORE_SQLITE_PATH" envDefault:"inventorycore.db"`
	PostgresDSN string `env:"INVENTORYCORE_POSTGRES_DSN"`
}

// BlobOptions selects the attachment backend and its S3 settings.
type BlobOptions struct {
	Driver            string `env:"INVENTORYCORE_BLOB_DRIVER" envDefault:"fs"`
	FSRoot            string `env:"INVENTORYCORE_BLOB_FS_ROOT" envDefault:"./blobdata"`
	S3Bucket          string `env:"INVENTORYCORE_BLOB_S3_BUCKET"`
	S3Region          string `env:"INVENTORYCORE_BLOB_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"INVENTORYCORE_BLOB_S3_ENDPOINT"`
	S3PathStyle       bool   `env:"INVENTORYCORE_BLOB_S3_PATH_STYLE" envDefault:"false"`
	S3AccessKeyID     string `env:"INVENTORYCORE_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"INVENTORYCORE_BLOB_S3_SECRET_ACCESS_KEY"`
}

// UserOptions names the signed-in user for workbench checks.
type UserOptions struct {
	Username    string `env:"INVENTORYCORE_USERNAME"`
	WorkbenchID int64  `env:"INVENTORYCORE_WORKBENCH_ID"`
}

// Configuration is the full process configuration parsed from the environment.
type Configuration struct {
	Storage StorageOptions
	Blob    BlobOptions
	User    UserOptions

	LogLevel         string `env:"INVENTORYCORE_LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"INVENTORYCORE_LOG_FORMAT" envDefault:"text"`
	MetricsNamespace string `env:"INVENTORYCORE_METRICS_NAMESPACE" envDefault:"inventorycore"`
	// UnitsFile replaces the built-in unit table with a JSON list.
	UnitsFile string `env:"INVENTORYCORE_UNITS_FILE"`
}

// LoadEnv loads the env files that exist and reports how many were read.
// Variables already set in the process win.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), errors.Wrap(godotenv.Load(existing...), "load env files")
}

// Load reads envFiles (DefaultEnvFiles when none are given) and parses the
// process environment.
func Load(envFiles ...string) (*Configuration, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, err
	}
	c := &Configuration{}
	if err := env.Parse(c); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	return c, c.Validate()
}

// Parse builds a configuration from an explicit variable map only.
func Parse(environ map[string]string) (*Configuration, error) {
	c := &Configuration{}
	if err := env.ParseWithOptions(c, env.Options{Environment: environ}); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	return c, c.Validate()
}

// Validate normalizes driver names and checks driver requirements.
func (c *Configuration) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return errors.Errorf("invalid INVENTORYCORE_STORAGE_DRIVER=%q (expected memory|sqlite|postgres)", c.Storage.Driver)
	}
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3Bucket == "" {
			return errors.New("INVENTORYCORE_BLOB_S3_BUCKET is required when INVENTORYCORE_BLOB_DRIVER=s3")
		}
	default:
		return errors.Errorf("invalid INVENTORYCORE_BLOB_DRIVER=%q (expected fs|s3|memory)", c.Blob.Driver)
	}
	if c.User.WorkbenchID < 0 {
		return errors.Errorf("invalid INVENTORYCORE_WORKBENCH_ID=%d", c.User.WorkbenchID)
	}
	return nil
}

// BlobConfig translates the blob options for blob.Open.
func (c *Configuration) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          c.Blob.S3Bucket,
			Region:          c.Blob.S3Region,
			Endpoint:        c.Blob.S3Endpoint,
			PathStyle:       c.Blob.S3PathStyle,
			AccessKeyID:     c.Blob.S3AccessKeyID,
			SecretAccessKey: c.Blob.S3SecretAccessKey,
		},
	}
}

// Logger builds the configured logger writing to w.
func (c *Configuration) Logger(w io.Writer) *logrus.Logger {
	return logging.New(w, c.LogLevel, logging.Format(strings.ToLower(c.LogFormat)))
}
