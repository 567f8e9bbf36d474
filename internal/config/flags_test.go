package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()

	args := []string{
		"-t", "tok", "-a", "127.0.0.1:9090", "-d", "/var/lib/relay", "-m", "512",
		"-r", "https://play", "-l", "debug", "-u", "user", "-p", "password",
		"-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
		"-unknown", "ignored",
	}
	require.NotPanics(t, func() { parseFlags(&cfg, args) })

	assert.Equal(t, "tok", cfg.BotToken)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTPAddr)
	assert.Equal(t, "/var/lib/relay", cfg.DataDir)
	assert.Equal(t, int64(512*MB), cfg.MaxFileSize)
	assert.Equal(t, "https://play", cfg.PlayerBaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "user", cfg.S3AccessKey)
	assert.Equal(t, "password", cfg.S3SecretKey)
	assert.Equal(t, "bucket", cfg.S3Bucket)
	assert.Equal(t, "us-west-1", cfg.S3Region)
	assert.Equal(t, "http://endpoint", cfg.S3BaseEndpoint)
}

func TestParseFlags_BadValuePanics(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()
	require.Panics(t, func() { parseFlags(&cfg, []string{"-m", "lots"}) })
}
