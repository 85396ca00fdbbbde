package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
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
	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
	"github.com/Relayn/video-downloader-uploader/internal/logging"
	"github.com/Relayn/video-downloader-uploader/internal/service"
)

func main() {
	// A missing .env is fine; variables may be set in the environment.
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	url := flag.String("url", "", "Video URL to download")
	cloud := flag.String("cloud", "", "Storage provider: google, yandex, s3 or local")
	folder := flag.String("folder", "", "Remote folder path, slash-separated (optional)")
	name := flag.String("name", "", "Remote filename without extension (optional)")
	quality := flag.String("quality", "", "Quality preset: "+strings.Join(domain.QualityPresets(), ", "))
	check := flag.Bool("check", false, "Only verify tools and provider credentials, then exit")
	flag.Parse()

	if *url == "" && !*check {
		fmt.Println("Usage: vdu-cli -url <video-url> -cloud <provider> [-folder <path>] [-name <filename>] [-quality <preset>]")
		fmt.Println("       vdu-cli -check -cloud <provider>")
		fmt.Println("\nExamples:")
		fmt.Println("  vdu-cli -url https://www.youtube.com/watch?v=dQw4w9WgXcQ -cloud google -folder Videos")
		fmt.Println("  vdu-cli -url https://vimeo.com/76979871 -cloud yandex -quality 720p")
		os.Exit(1)
	}

	logger := logging.Setup(logging.FromEnv("cli"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration error")
	}

	provider, err := domain.ParseProvider(*cloud)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid -cloud value")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch := buildOrchestrator(cfg, logger)

	if *check {
		if err := orch.Preflight(ctx, provider); err != nil {
			logger.Error().Err(err).Msg("preflight failed")
			os.Exit(1)
		}
		fmt.Printf("OK: yt-dlp, ffmpeg and %s are ready\n", provider)
		return
	}

	result := orch.Run(ctx, domain.JobRequest{
		URL:      *url,
		Provider: provider,
		Folder:   *folder,
		Filename: *name,
		Quality:  *quality,
	}, newProgressPrinter())

	printSummary(result)
	if !result.Success {
		os.Exit(1)
	}
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

// newProgressPrinter renders a single in-place progress line on stderr,
// away from the structured log stream on stdout.
func newProgressPrinter() domain.ProgressFunc {
	lastPct := -1
	return func(ev domain.ProgressEvent) {
		pct := int(ev.Fraction * 100)
		if pct == lastPct {
			return
		}
		lastPct = pct
		fmt.Fprintf(os.Stderr, "\r%-12s %3d%%", ev.Phase, pct)
		if pct >= 100 {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func printSummary(result *domain.JobResult) {
	fmt.Println("\n=== Job Summary ===")
	fmt.Printf("Job ID:       %s\n", result.JobID)
	fmt.Printf("Provider:     %s\n", result.Provider)
	fmt.Printf("Success:      %t\n", result.Success)
	if result.Success {
		if result.Title != "" {
			fmt.Printf("Title:        %s\n", result.Title)
		}
		fmt.Printf("Remote ID:    %s\n", result.RemoteID)
		if result.RemoteURL != "" {
			fmt.Printf("Remote URL:   %s\n", result.RemoteURL)
		}
	} else {
		fmt.Printf("Error:        [%s] %s\n", result.ErrorCategory, result.ErrorMessage)
	}
	fmt.Printf("Elapsed:      %s\n", result.Elapsed.Round(10*time.Millisecond))
	fmt.Printf("Completed At: %s\n", result.CompletedAt.Format("2006-01-02 15:04:05 UTC"))
}
