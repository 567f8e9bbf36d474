package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// dotenvFiles are loaded before reading the environment. Variables that are
// already set win over the files.
var dotenvFiles = []string{".env"}

// parseEnv overlays values from environment variables. Sizes are given in
// MB, durations in Go syntax ("48h"), lists comma-separated.
func parseEnv(cfg *Config) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	megabytes := func(name string, dst *int64) {
		if v, ok := os.LookupEnv(name); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n * MB
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("BOT_TOKEN", &cfg.BotToken)
	if v, ok := os.LookupEnv("ADMIN_ID"); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_ID: %w", err))
		} else {
			cfg.AdminID = id
		}
	}
	if v, ok := os.LookupEnv("ALLOWED_USERS"); ok {
		ids, err := parseIDList(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ALLOWED_USERS: %w", err))
		} else {
			cfg.AllowedUsers = ids
		}
	}

	str("DATA_DIR", &cfg.DataDir)
	str("DOWNLOAD_DIR", &cfg.DownloadDir)
	megabytes("MAX_FILE_SIZE_MB", &cfg.MaxFileSize)
	megabytes("MULTIPART_THRESHOLD_MB", &cfg.MultipartThreshold)
	megabytes("PART_SIZE_MB", &cfg.PartSize)
	num("UPLOAD_WORKERS", &cfg.UploadWorkers)
	dur("STAGE_TIMEOUT", &cfg.StageTimeout)
	dur("PRESIGN_TTL", &cfg.PresignTTL)

	dur("REGISTRY_TTL", &cfg.RegistryTTL)
	num("REGISTRY_MAX_ENTRIES", &cfg.RegistryMaxEntries)
	num("REGISTRY_FLUSH_EVERY", &cfg.RegistryFlushEvery)
	dur("REGISTRY_SWEEP_INTERVAL", &cfg.RegistrySweepInterval)

	dur("PROGRESS_INTERVAL", &cfg.ProgressInterval)
	dur("PROGRESS_TIMEOUT", &cfg.ProgressTimeout)

	str("RENDER_URL", &cfg.PlayerBaseURL)
	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("LOG_LEVEL", &cfg.LogLevel)

	str("S3_ACCESS_KEY", &cfg.S3AccessKey)
	str("S3_SECRET_KEY", &cfg.S3SecretKey)
	str("S3_BUCKET", &cfg.S3Bucket)
	str("S3_REGION", &cfg.S3Region)
	str("S3_ENDPOINT", &cfg.S3BaseEndpoint)
	if v, ok := os.LookupEnv("S3_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("S3_PATH_STYLE: %w", err))
		} else {
			cfg.S3UsePathStyle = b
		}
	}

	num("USER_RATE_LIMIT", &cfg.UserRateLimit)
	dur("USER_RATE_PERIOD", &cfg.UserRatePeriod)

	return errors.Join(errs...)
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
