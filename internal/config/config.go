// Package config holds runtime settings for the relay bot, the player server
// and the admin CLI. Values are layered: defaults, then environment (with an
// optional .env file), then an optional JSON file, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/filerelay/internal/flagx"
)

// MB is one mebibyte; sizes in flags and env vars are given in these units.
const MB = 1024 * 1024

// maxPresignTTL is the longest expiry S3 SigV4 presigning accepts.
const maxPresignTTL = 7 * 24 * time.Hour

// Config holds runtime settings.
//
// Fields:
//   - BotToken / AdminID / AllowedUsers: Telegram credentials and allow-list seed.
//   - DataDir: where the callback registry and allow-list files live.
//   - DownloadDir: transient storage for files between download and upload.
//   - MaxFileSize / MultipartThreshold / PartSize / UploadWorkers: transfer limits.
//   - StageTimeout: bound for each of the download and upload stages.
//   - PresignTTL: lifetime of minted download links.
//   - Registry*: callback token TTL, capacity, write batching, sweep cadence.
//   - Progress*: progress message throttle and per-update timeout.
//   - PlayerBaseURL / HTTPAddr: public base of the player server and its bind address.
//   - S3*: object storage settings; S3UsePathStyle for MinIO-like endpoints.
//   - UserRateLimit / UserRatePeriod: uploads allowed per user per period.
type Config struct {
	BotToken     string
	AdminID      int64
	AllowedUsers []int64

	DataDir     string
	DownloadDir string

	MaxFileSize        int64
	MultipartThreshold int64
	PartSize           int64
	UploadWorkers      int
	StageTimeout       time.Duration
	PresignTTL         time.Duration

	RegistryTTL           time.Duration
	RegistryMaxEntries    int
	RegistryFlushEvery    int
	RegistrySweepInterval time.Duration

	ProgressInterval time.Duration
	ProgressTimeout  time.Duration

	PlayerBaseURL string
	HTTPAddr      string
	LogLevel      string

	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3UsePathStyle bool

	UserRateLimit  int
	UserRatePeriod time.Duration
}

// LoadDefaults populates Config with development defaults.
// NOTE: credentials are intentionally empty and must be supplied.
func (c *Config) LoadDefaults() {
	c.DataDir = "data"
	c.DownloadDir = "downloads"
	c.MaxFileSize = 2048 * MB
	c.MultipartThreshold = 50 * MB
	c.PartSize = 16 * MB
	c.UploadWorkers = 16
	c.StageTimeout = 5 * time.Minute
	c.PresignTTL = maxPresignTTL
	c.RegistryTTL = 48 * time.Hour
	c.RegistryMaxEntries = 1000
	c.RegistryFlushEvery = 10
	c.RegistrySweepInterval = time.Hour
	c.ProgressInterval = 2 * time.Second
	c.ProgressTimeout = 5 * time.Second
	c.HTTPAddr = ":8080"
	c.LogLevel = "info"
	c.S3Bucket = "relay"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.UserRateLimit = 5
	c.UserRatePeriod = time.Minute
}

// Validate reports settings that would make the pipeline misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.PartSize <= 0 {
		errs = append(errs, errors.New("part size must be positive"))
	}
	if c.MultipartThreshold < c.PartSize {
		errs = append(errs, fmt.Errorf("multipart threshold %d is below part size %d", c.MultipartThreshold, c.PartSize))
	}
	if c.UploadWorkers < 1 {
		errs = append(errs, errors.New("upload workers must be at least 1"))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}
	if c.PresignTTL <= 0 || c.PresignTTL > maxPresignTTL {
		errs = append(errs, fmt.Errorf("presign ttl must be within (0, %s]", maxPresignTTL))
	}
	if c.RegistryMaxEntries < 1 {
		errs = append(errs, errors.New("registry max entries must be at least 1"))
	}
	if c.RegistrySweepInterval <= 0 {
		errs = append(errs, errors.New("registry sweep interval must be positive"))
	}
	return errors.Join(errs...)
}

// RegistryPath is the callback registry file inside DataDir.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "callbacks.json")
}

// UsersPath is the allow-list file inside DataDir.
func (c *Config) UsersPath() string {
	return filepath.Join(c.DataDir, "users.json")
}

// LoadConfig builds a Config from defaults, the environment, the JSON file
// named by -c/-config and finally command-line flags. It panics when the
// JSON file or flags cannot be parsed.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		panic(err)
	}
	if path := flagx.ConfigPath(os.Args[1:]); path != "" {
		if err := parseJSON(cfg, path); err != nil {
			panic(err)
		}
	}
	parseFlags(cfg, os.Args[1:])
	return cfg
}

// FromFile is the non-panicking variant used by the CLI: defaults, the
// environment and, when path is not empty, the JSON file.
func FromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if path != "" {
		if err := parseJSON(cfg, path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
