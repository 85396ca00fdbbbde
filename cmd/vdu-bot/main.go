package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/adapters/gdrive"
	"github.com/Relayn/video-downloader-uploader/internal/adapters/localdisk"
	"github.com/Relayn/video-downloader-uploader/internal/adapters/s3"
	"github.com/Relayn/video-downloader-uploader/internal/adapters/yadisk"
	"github.com/Relayn/video-downloader-uploader/internal/adapters/ytdlp"
	"github.com/Relayn/video-downloader-uploader/internal/auth"
	"github.com/Relayn/video-downloader-uploader/internal/config"
	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
	"github.com/Relayn/video-downloader-uploader/internal/logging"
	"github.com/Relayn/video-downloader-uploader/internal/service"
)

// server holds the bot state: one job may run per chat at a time.
type server struct {
	cfg    *config.Config
	bot    *tgbotapi.BotAPI
	orch   *service.Orchestrator
	logger zerolog.Logger

	mu       sync.Mutex
	inFlight map[int64]bool
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	logger := logging.Setup(logging.FromEnv("bot"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration error")
	}
	if cfg.TelegramToken == "" {
		logger.Fatal().Msg("TELEGRAM_BOT_TOKEN is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram authorization failed")
	}
	bot.Debug = false
	logger.Info().Str("username", bot.Self.UserName).Msg("bot authorized")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := &server{
		cfg:      cfg,
		bot:      bot,
		orch:     buildOrchestrator(cfg, logger),
		logger:   logger,
		inFlight: make(map[int64]bool),
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.TelegramPollSecond
	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()

	for upd := range updates {
		if upd.Message != nil {
			s.onMessage(ctx, upd.Message)
		}
	}
	logger.Info().Msg("bot stopped")
}

func (s *server) onMessage(ctx context.Context, m *tgbotapi.Message) {
	s.logger.Info().
		Int64("chat_id", m.Chat.ID).
		Int64("user_id", m.From.ID).
		Msg("message received")

	if m.IsCommand() {
		switch m.Command() {
		case "start":
			s.reply(m.Chat.ID, "Send me a video URL (YouTube, TikTok, Vimeo, Rutube, VK) "+
				"and I will upload it to "+s.cfg.TelegramProvider+".")
		case "help":
			s.reply(m.Chat.ID, "Paste a video page URL as a plain message. One job per chat "+
				"at a time; I reply with the link when the upload finishes.")
		default:
			s.reply(m.Chat.ID, "Unknown command. Send a video URL to start.")
		}
		return
	}

	url := firstURL(m.Text)
	if url == "" {
		return
	}
	if domain.DetectPlatform(url) == domain.PlatformUnknown {
		s.reply(m.Chat.ID, "That does not look like a supported video URL.")
		return
	}

	if !s.claim(m.Chat.ID) {
		s.reply(m.Chat.ID, "A job is already running in this chat. Wait for it to finish.")
		return
	}

	s.reply(m.Chat.ID, "Downloading...")
	go s.runJob(ctx, m.Chat.ID, url)
}

// runJob executes one job on its own goroutine and reports phase changes
// and the final outcome back into the chat.
func (s *server) runJob(ctx context.Context, chatID int64, url string) {
	defer s.release(chatID)

	lastPhase := domain.PhaseDownloading
	result := s.orch.Run(ctx, domain.JobRequest{
		URL:      url,
		Provider: domain.Provider(s.cfg.TelegramProvider),
		Folder:   s.cfg.TelegramFolder,
	}, func(ev domain.ProgressEvent) {
		if ev.Phase != lastPhase && ev.Phase == domain.PhaseUploading {
			lastPhase = ev.Phase
			s.reply(chatID, "Uploading...")
		}
	})

	if !result.Success {
		s.reply(chatID, fmt.Sprintf("Failed (%s): %s", result.ErrorCategory, result.ErrorMessage))
		return
	}
	ref := result.RemoteURL
	if ref == "" {
		ref = result.RemoteID
	}
	s.reply(chatID, "Done: "+ref)
}

func (s *server) claim(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[chatID] {
		return false
	}
	s.inFlight[chatID] = true
	return true
}

func (s *server) release(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, chatID)
}

func (s *server) reply(chatID int64, text string) {
	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
	}
}

// firstURL picks the first http(s) token out of a message.
func firstURL(text string) string {
	for _, tok := range strings.Fields(text) {
		if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
			return tok
		}
	}
	return ""
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
