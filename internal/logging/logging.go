// Package logging configures zerolog for the vdu binaries: structured
// events to stdout plus an optional rotating logfile.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config via env or code.
type Config struct {
	Service        string // "cli", "web" or "bot"
	Level          string // debug|info|warn|error
	Format         string // json|console
	FilePath       string // rotating logfile path ("" = disabled)
	FileMaxSizeMB  int    // rotate at ~MB
	FileMaxBackups int    // keep N old logs
	FileMaxAgeDays int    // keep #days
	FileCompress   bool   // gzip old logs
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}

// FromEnv builds a config from the environment with sane defaults. The
// logfile defaults to on; set LOG_TO_FILE=false to disable it.
func FromEnv(service string) Config {
	filePath := ""
	if getenvBool("LOG_TO_FILE", true) {
		filePath = getenv("LOG_FILE", "logs/vdu.log")
	}
	return Config{
		Service:        service,
		Level:          strings.ToLower(getenv("LOG_LEVEL", "info")),
		Format:         strings.ToLower(getenv("LOG_FORMAT", "console")),
		FilePath:       filePath,
		FileMaxSizeMB:  getenvInt("LOG_FILE_MAX_SIZE", 5),
		FileMaxBackups: getenvInt("LOG_FILE_MAX_BACKUPS", 3),
		FileMaxAgeDays: getenvInt("LOG_FILE_MAX_AGE", 7),
		FileCompress:   getenvBool("LOG_FILE_COMPRESS", false),
	}
}

// Setup configures the zerolog global logger and returns the instance.
func Setup(c Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var writers []io.Writer
	if c.Format == "console" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, os.Stdout)
	}
	if c.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.FileMaxSizeMB,
			MaxBackups: c.FileMaxBackups,
			MaxAge:     c.FileMaxAgeDays,
			Compress:   c.FileCompress,
		})
	}
	multi := io.MultiWriter(writers...)

	logger := zerolog.New(multi).Level(lvl).With().
		Timestamp().
		Str("svc", c.Service).
		Logger()

	log.Logger = logger
	return logger
}
