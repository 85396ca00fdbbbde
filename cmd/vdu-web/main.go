package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/adapters/gdrive"
	"github.com/Relayn/video-downloader-uploader/internal/adapters/localdisk"
	"github.com/Relayn/video-downloader-uploader/internal/adapters/s3"
	"github.com/Relayn/video-downloader-uploader/internal/adapters/yadisk"
	"github.com/Relayn/video-downloader-uploader/internal/adapters/ytdlp"
	"github.com/Relayn/video-downloader-uploader/internal/auth"
	"github.com/Relayn/video-downloader-uploader/internal/config"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
	"github.com/Relayn/video-downloader-uploader/internal/logging"
	"github.com/Relayn/video-downloader-uploader/internal/service"
	"github.com/Relayn/video-downloader-uploader/internal/web"
)

const envFile = ".env"

func main() {
	if err := godotenv.Load(envFile); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	logger := logging.Setup(logging.FromEnv("web"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration error")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch := buildOrchestrator(cfg, logger)
	tracker := web.NewTracker(ctx, orch, logger)
	server := web.NewServer(tracker, envFile, config.Settings{
		YandexToken:           cfg.YandexToken,
		GoogleCredentialsFile: cfg.GoogleCredentialsFile,
		GoogleTokenFile:       cfg.GoogleTokenFile,
		ProxyURL:              cfg.ProxyURL,
		LocalSaveDir:          cfg.LocalSaveDir,
		LogLevel:              os.Getenv("LOG_LEVEL"),
		LogFile:               os.Getenv("LOG_FILE"),
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("web front end listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func buildOrchestrator(cfg *config.Config, logger zerolog.Logger) *service.Orchestrator {
	creds := auth.NewCache(auth.Config{
		GoogleCredentialsFile: cfg.GoogleCredentialsFile,
		GoogleTokenFile:       cfg.GoogleTokenFile,
		YandexToken:           cfg.YandexToken,
	}, logger)

	downloader := ytdlp.New(ytdlp.Config{
		BinaryPath: cfg.YtdlpPath,
		FFmpegPath: cfg.FFmpegPath,
		ProxyURL:   cfg.ProxyURL,
	}, logger)

	uploaders := []ports.Uploader{
		gdrive.New(creds, logger),
		yadisk.New(creds, logger),
		s3.New(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		}, logger),
		localdisk.New(cfg.LocalSaveDir, logger),
	}

	return service.New(downloader, uploaders, cfg.TempDir, logger)
}
