package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	t.Run("overrides present keys", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{
			"bot_token":              "123:abc",
			"admin_id":               42,
			"allowed_users":          []int64{7, 8},
			"part_size_mb":           8,
			"multipart_threshold_mb": 64,
			"upload_workers":         4,
			"stage_timeout":          "10m",
			"registry_ttl":           "168h",
			"progress_interval":      1000000000,
			"player_base_url":        "https://play.example",
			"s3_bucket":              "media",
			"s3_use_path_style":      true,
		})

		var cfg Config
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(&cfg, path))

		assert.Equal(t, "123:abc", cfg.BotToken)
		assert.Equal(t, int64(42), cfg.AdminID)
		assert.Equal(t, []int64{7, 8}, cfg.AllowedUsers)
		assert.Equal(t, int64(8*MB), cfg.PartSize)
		assert.Equal(t, int64(64*MB), cfg.MultipartThreshold)
		assert.Equal(t, 4, cfg.UploadWorkers)
		assert.Equal(t, 10*time.Minute, cfg.StageTimeout)
		assert.Equal(t, 168*time.Hour, cfg.RegistryTTL)
		assert.Equal(t, time.Second, cfg.ProgressInterval)
		assert.Equal(t, "https://play.example", cfg.PlayerBaseURL)
		assert.Equal(t, "media", cfg.S3Bucket)
		assert.True(t, cfg.S3UsePathStyle)
	})

	t.Run("absent keys keep current values", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{"s3_region": "eu-central-1"})

		var cfg Config
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(&cfg, path))

		assert.Equal(t, "eu-central-1", cfg.S3Region)
		assert.Equal(t, "relay", cfg.S3Bucket)
		assert.Equal(t, 48*time.Hour, cfg.RegistryTTL)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		var cfg Config
		require.Error(t, parseJSON(&cfg, bad))
	})
}

func TestLoadConfig_PanicsOnBadJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`nope`), 0o600))
	os.Args = []string{"testbin", "-c", bad}

	require.Panics(t, func() { LoadConfig() })
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Setenv("S3_BUCKET", "env-bucket")
	t.Setenv("S3_REGION", "env-region")
	path := writeTempJSON(t, map[string]any{"s3_bucket": "json-bucket", "s3_base_endpoint": "http://json:9000"})
	os.Args = []string{"testbin", "-c", path, "-e", "http://flag:9000"}

	cfg := LoadConfig()

	assert.Equal(t, "json-bucket", cfg.S3Bucket)
	assert.Equal(t, "env-region", cfg.S3Region)
	assert.Equal(t, "http://flag:9000", cfg.S3BaseEndpoint)
}
