// Package config loads application settings from the environment. A .env
// file, when present, is folded into the environment by the entrypoints
// before Load runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment
// variables. Provider credentials may be absent here; they are checked when
// a job first needs them, not at startup.
type Config struct {
	AppEnv string

	// Downloader
	YtdlpPath  string
	FFmpegPath string
	ProxyURL   string
	TempDir    string

	// Google Drive
	GoogleCredentialsFile string
	GoogleTokenFile       string

	// Yandex Disk
	YandexToken string

	// S3-compatible storage
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool

	// Local save backend
	LocalSaveDir string

	// Web front end
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Telegram front end
	TelegramToken      string
	TelegramProvider   string
	TelegramFolder     string
	TelegramPollSecond int
}

// Load builds the configuration from environment variables, applying
// defaults where needed.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),

		YtdlpPath:  getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),
		ProxyURL:   os.Getenv("PROXY_URL"),
		TempDir:    getEnv("TEMP_DIR", os.TempDir()),

		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS", "credentials.json"),
		GoogleTokenFile:       getEnv("GOOGLE_TOKEN_FILE", "token.json"),

		YandexToken: os.Getenv("YANDEX_TOKEN"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    getEnv("S3_BUCKET", "videos"),
		S3Region:    os.Getenv("S3_REGION"),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),

		LocalSaveDir: getEnv("LOCAL_SAVE_DIR", "downloads"),

		Port:             getEnv("PORT", "8080"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramProvider:   getEnv("TELEGRAM_PROVIDER", "google"),
		TelegramFolder:     getEnv("TELEGRAM_FOLDER", "telegram-uploads"),
		TelegramPollSecond: getEnvInt("TELEGRAM_POLL_SECONDS", 30),
	}

	if cfg.TempDir == "" {
		return nil, fmt.Errorf("TEMP_DIR resolved to an empty path")
	}

	return cfg, nil
}

// Settings is the subset of configuration editable from the web settings
// page. Values are written back to the .env file so the next start picks
// them up.
type Settings struct {
	YandexToken           string
	GoogleCredentialsFile string
	GoogleTokenFile       string
	ProxyURL              string
	LocalSaveDir          string
	LogLevel              string
	LogFile               string
}

// SaveSettings merges the editable settings into the .env file at path,
// preserving unrelated keys.
func SaveSettings(path string, s Settings) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		env = map[string]string{}
	}

	env["YANDEX_TOKEN"] = s.YandexToken
	env["GOOGLE_CREDENTIALS"] = s.GoogleCredentialsFile
	env["GOOGLE_TOKEN_FILE"] = s.GoogleTokenFile
	env["PROXY_URL"] = s.ProxyURL
	env["LOCAL_SAVE_DIR"] = s.LocalSaveDir
	env["LOG_LEVEL"] = s.LogLevel
	env["LOG_FILE"] = s.LogFile

	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
