package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/filerelay/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Only keys present in
// the file override the current values; durations accept "2s" or integer
// nanoseconds, sizes are in MB.
type JsonConfig struct {
	BotToken     *string `json:"bot_token"`
	AdminID      *int64  `json:"admin_id"`
	AllowedUsers []int64 `json:"allowed_users"`

	DataDir     *string `json:"data_dir"`
	DownloadDir *string `json:"download_dir"`

	MaxFileSizeMB        *int64          `json:"max_file_size_mb"`
	MultipartThresholdMB *int64          `json:"multipart_threshold_mb"`
	PartSizeMB           *int64          `json:"part_size_mb"`
	UploadWorkers        *int            `json:"upload_workers"`
	StageTimeout         *timex.Duration `json:"stage_timeout"`
	PresignTTL           *timex.Duration `json:"presign_ttl"`

	RegistryTTL           *timex.Duration `json:"registry_ttl"`
	RegistryMaxEntries    *int            `json:"registry_max_entries"`
	RegistryFlushEvery    *int            `json:"registry_flush_every"`
	RegistrySweepInterval *timex.Duration `json:"registry_sweep_interval"`

	ProgressInterval *timex.Duration `json:"progress_interval"`
	ProgressTimeout  *timex.Duration `json:"progress_timeout"`

	PlayerBaseURL *string `json:"player_base_url"`
	HTTPAddr      *string `json:"http_addr"`
	LogLevel      *string `json:"log_level"`

	S3AccessKey    *string `json:"s3_access_key"`
	S3SecretKey    *string `json:"s3_secret_key"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	S3UsePathStyle *bool   `json:"s3_use_path_style"`

	UserRateLimit  *int            `json:"user_rate_limit"`
	UserRatePeriod *timex.Duration `json:"user_rate_period"`
}

// parseJSON overlays values from the JSON file at path.
func parseJSON(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var c JsonConfig
	if err := json.Unmarshal(b, &c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.BotToken, c.BotToken)
	if c.AdminID != nil {
		cfg.AdminID = *c.AdminID
	}
	if c.AllowedUsers != nil {
		cfg.AllowedUsers = c.AllowedUsers
	}
	setString(&cfg.DataDir, c.DataDir)
	setString(&cfg.DownloadDir, c.DownloadDir)
	setMB(&cfg.MaxFileSize, c.MaxFileSizeMB)
	setMB(&cfg.MultipartThreshold, c.MultipartThresholdMB)
	setMB(&cfg.PartSize, c.PartSizeMB)
	setInt(&cfg.UploadWorkers, c.UploadWorkers)
	setDuration(&cfg.StageTimeout, c.StageTimeout)
	setDuration(&cfg.PresignTTL, c.PresignTTL)

	setDuration(&cfg.RegistryTTL, c.RegistryTTL)
	setInt(&cfg.RegistryMaxEntries, c.RegistryMaxEntries)
	setInt(&cfg.RegistryFlushEvery, c.RegistryFlushEvery)
	setDuration(&cfg.RegistrySweepInterval, c.RegistrySweepInterval)

	setDuration(&cfg.ProgressInterval, c.ProgressInterval)
	setDuration(&cfg.ProgressTimeout, c.ProgressTimeout)

	setString(&cfg.PlayerBaseURL, c.PlayerBaseURL)
	setString(&cfg.HTTPAddr, c.HTTPAddr)
	setString(&cfg.LogLevel, c.LogLevel)

	setString(&cfg.S3AccessKey, c.S3AccessKey)
	setString(&cfg.S3SecretKey, c.S3SecretKey)
	setString(&cfg.S3Bucket, c.S3Bucket)
	setString(&cfg.S3Region, c.S3Region)
	setString(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.S3UsePathStyle != nil {
		cfg.S3UsePathStyle = *c.S3UsePathStyle
	}

	setInt(&cfg.UserRateLimit, c.UserRateLimit)
	setDuration(&cfg.UserRatePeriod, c.UserRatePeriod)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setMB(dst *int64, v *int64) {
	if v != nil {
		*dst = *v * MB
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
