package config

import (
	"flag"

	"github.com/dmitrijs2005/filerelay/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-t string   Telegram bot token
//	-a string   HTTP bind address for the player server (e.g. ":8080")
//	-d string   data directory (registry, allow-list)
//	-m int      max file size, MB
//	-r string   player base URL
//	-l string   log level
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//
// Arguments are filtered through flagx.FilterArgs first so that flags owned
// by other components do not cause parse errors.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-t", "-a", "-d", "-m", "-r", "-l", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BotToken, "t", cfg.BotToken, "telegram bot token")
	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "player server bind address")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	maxSize := fs.Int64("m", cfg.MaxFileSize/MB, "max file size (in MB)")
	fs.StringVar(&cfg.PlayerBaseURL, "r", cfg.PlayerBaseURL, "player base URL")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "p", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.MaxFileSize = *maxSize * MB
}
