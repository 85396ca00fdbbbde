// Package ytdlp wraps the local yt-dlp binary as the video downloader.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
	"github.com/Relayn/video-downloader-uploader/internal/logging"
)

// Config holds the external tool locations and network options.
type Config struct {
	// BinaryPath is the yt-dlp executable. Defaults to "yt-dlp" on PATH.
	BinaryPath string
	// FFmpegPath is checked during preflight; yt-dlp needs it to merge
	// separate video and audio streams.
	FFmpegPath string
	// ProxyURL is passed through to the extractor when set.
	ProxyURL string
}

// Downloader fetches videos with yt-dlp.
type Downloader struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a Downloader.
func New(cfg Config, logger zerolog.Logger) *Downloader {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "yt-dlp"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &Downloader{cfg: cfg, logger: logger}
}

// yt-dlp progress lines look like "[download]  42.1% of 10.32MiB at ...".
var progressRe = regexp.MustCompile(`^\[download\]\s+([0-9.]+)%`)

// Download fetches the video described by req into req.Dir.
func (d *Downloader) Download(ctx context.Context, req ports.DownloadRequest) (*ports.DownloadResult, error) {
	if platform := domain.DetectPlatform(req.URL); platform == domain.PlatformUnknown {
		return nil, domain.Errorf(domain.ErrorUnsupportedURL, "unsupported video url: %s", req.URL)
	}

	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, domain.NewError(domain.ErrorDownload, fmt.Errorf("create download dir: %w", err))
	}

	cmd := exec.CommandContext(ctx, d.cfg.BinaryPath, d.buildArgs(req)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, domain.NewError(domain.ErrorDownload, fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, domain.NewError(domain.ErrorDownload, fmt.Errorf("stderr pipe: %w", err))
	}

	var stderrBuf bytes.Buffer
	lw := logging.NewLineWriter(d.logger, map[string]string{"tool": "yt-dlp"}, zerolog.DebugLevel)
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		lw.Pipe(io.TeeReader(stderr, &stderrBuf))
	}()

	if err := cmd.Start(); err != nil {
		return nil, domain.NewError(domain.ErrorDownload, fmt.Errorf("start yt-dlp: %w", err))
	}

	finalPath, lastFraction := d.scanOutput(stdout, req.OnProgress)

	waitErr := cmd.Wait()
	<-stderrDone

	if waitErr != nil {
		return nil, domain.NewError(domain.ErrorDownload,
			fmt.Errorf("yt-dlp failed: %w: %s", waitErr, tail(stderrBuf.String(), 800)))
	}

	if finalPath == "" {
		finalPath = newestFileIn(req.Dir)
	}
	if finalPath == "" {
		return nil, domain.Errorf(domain.ErrorDownload, "yt-dlp reported no output file for %s", req.URL)
	}

	st, err := os.Stat(finalPath)
	if err != nil {
		return nil, domain.NewError(domain.ErrorDownload, fmt.Errorf("downloaded file missing: %w", err))
	}
	if st.Size() == 0 {
		_ = os.Remove(finalPath)
		return nil, domain.Errorf(domain.ErrorDownload, "downloaded file is empty: %s", finalPath)
	}

	if req.OnProgress != nil && lastFraction < 1 {
		req.OnProgress(domain.ProgressEvent{Phase: domain.PhaseDownloading, Fraction: 1})
	}

	ext := strings.TrimPrefix(filepath.Ext(finalPath), ".")
	title := strings.TrimSuffix(filepath.Base(finalPath), filepath.Ext(finalPath))
	d.logger.Info().Str("path", finalPath).Int64("size", st.Size()).Msg("download finished")

	return &ports.DownloadResult{
		Path:  finalPath,
		Title: title,
		Ext:   ext,
		Size:  st.Size(),
	}, nil
}

// buildArgs assembles the yt-dlp invocation. The --print line carries the
// final file location; --progress keeps the per-line percent output that
// --print would otherwise silence.
func (d *Downloader) buildArgs(req ports.DownloadRequest) []string {
	var template string
	if req.Filename != "" {
		template = filepath.Join(req.Dir, domain.SanitizeFilename(req.Filename)+".%(ext)s")
	} else {
		template = filepath.Join(req.Dir, "%(title)s.%(ext)s")
	}

	args := []string{
		"-o", template,
		"-f", formatFor(req.Quality),
		"--no-playlist",
		"--no-warnings",
		"--newline",
		"--no-simulate",
		"--progress",
		"--print", "after_move:filepath",
	}
	if d.cfg.ProxyURL != "" {
		args = append(args, "--proxy", d.cfg.ProxyURL)
	}
	return append(args, req.URL)
}

// scanOutput consumes yt-dlp stdout, reporting percent lines and capturing
// the printed final path. Percent output restarts for each stream of a
// merged format, so reported fractions are clamped to be non-decreasing.
func (d *Downloader) scanOutput(r io.Reader, onProgress domain.ProgressFunc) (finalPath string, last float64) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if fraction, ok := parseProgressLine(line); ok {
			if onProgress != nil && fraction > last {
				last = fraction
				onProgress(domain.ProgressEvent{Phase: domain.PhaseDownloading, Fraction: fraction})
			}
			continue
		}
		if looksLikePath(line) {
			finalPath = line
		}
	}
	return finalPath, last
}

func parseProgressLine(line string) (float64, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct < 0 || pct > 100 {
		return 0, false
	}
	return pct / 100, true
}

func looksLikePath(line string) bool {
	if strings.HasPrefix(line, "[") {
		return false
	}
	return filepath.IsAbs(line) || strings.ContainsRune(line, os.PathSeparator)
}

// newestFileIn is the fallback when yt-dlp's printed path was lost; the
// download dir is private to one job, so the newest complete file is ours.
func newestFileIn(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTime int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if t := info.ModTime().UnixNano(); best == "" || t > bestTime {
			best = filepath.Join(dir, name)
			bestTime = t
		}
	}
	return best
}

// formatFor maps a quality preset to a yt-dlp format expression.
func formatFor(quality string) string {
	switch quality {
	case domain.Quality1080p:
		return "bestvideo[height<=1080]+bestaudio/best[height<=1080]"
	case domain.Quality720p:
		return "bestvideo[height<=720]+bestaudio/best[height<=720]"
	case domain.Quality480p:
		return "bestvideo[height<=480]+bestaudio/best[height<=480]"
	case domain.QualityAudio:
		return "bestaudio/best"
	default:
		return "bestvideo+bestaudio/best"
	}
}

// Version runs yt-dlp --version.
func (d *Downloader) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, d.cfg.BinaryPath, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CheckTools verifies the external binaries a download needs.
func (d *Downloader) CheckTools(ctx context.Context) error {
	var problems []error
	if v, err := d.Version(ctx); err != nil {
		problems = append(problems, fmt.Errorf("yt-dlp is not available (%s): %w", d.cfg.BinaryPath, err))
	} else {
		d.logger.Debug().Str("version", v).Msg("yt-dlp found")
	}
	if _, err := exec.LookPath(d.cfg.FFmpegPath); err != nil {
		problems = append(problems, errors.New("ffmpeg not found; merged formats will fail"))
	}
	return errors.Join(problems...)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
