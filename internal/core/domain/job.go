package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider identifies a storage backend for uploaded videos.
type Provider string

const (
	ProviderGoogleDrive Provider = "google"
	ProviderYandexDisk  Provider = "yandex"
	ProviderS3          Provider = "s3"
	ProviderLocal       Provider = "local"
)

// ParseProvider converts a user-supplied provider name.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderGoogleDrive:
		return ProviderGoogleDrive, nil
	case ProviderYandexDisk:
		return ProviderYandexDisk, nil
	case ProviderS3:
		return ProviderS3, nil
	case ProviderLocal:
		return ProviderLocal, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// Phase is the stage a running job is currently in.
type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseDownloading Phase = "downloading"
	PhaseUploading   Phase = "uploading"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// Platform is the source site a video URL belongs to.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformTikTok  Platform = "tiktok"
	PlatformVimeo   Platform = "vimeo"
	PlatformRutube  Platform = "rutube"
	PlatformVK      Platform = "vk"
	PlatformUnknown Platform = "unknown"
)

var platformHosts = map[string]Platform{
	"youtube.com": PlatformYouTube,
	"youtu.be":    PlatformYouTube,
	"tiktok.com":  PlatformTikTok,
	"vimeo.com":   PlatformVimeo,
	"rutube.ru":   PlatformRutube,
	"vk.com":      PlatformVK,
	"vkvideo.ru":  PlatformVK,
}

// DetectPlatform maps a video page URL to its source platform.
// Malformed URLs and non-http(s) schemes report PlatformUnknown.
func DetectPlatform(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	for suffix, platform := range platformHosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return platform
		}
	}
	return PlatformUnknown
}

// Quality presets accepted by JobRequest.Quality. Each maps to a format
// expression inside the downloader.
const (
	QualityBest  = "best"
	Quality1080p = "1080p"
	Quality720p  = "720p"
	Quality480p  = "480p"
	QualityAudio = "audio"
)

// QualityPresets lists the accepted quality values in display order.
func QualityPresets() []string {
	return []string{QualityBest, Quality1080p, Quality720p, Quality480p, QualityAudio}
}

// JobRequest holds the user-supplied parameters of a single
// download-then-upload job. A request is immutable once submitted.
type JobRequest struct {
	URL      string   `json:"url"`
	Provider Provider `json:"provider"`
	Folder   string   `json:"folder,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Quality  string   `json:"quality,omitempty"`
}

// Validate reports whether the request can be accepted at all. Credential
// and network problems are not checked here; they surface when the job runs.
func (r JobRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return Errorf(ErrorUnsupportedURL, "url is required")
	}
	if DetectPlatform(r.URL) == PlatformUnknown {
		return Errorf(ErrorUnsupportedURL, "unsupported video url: %s", r.URL)
	}
	if _, err := ParseProvider(string(r.Provider)); err != nil {
		return err
	}
	if r.Quality != "" {
		known := false
		for _, q := range QualityPresets() {
			if r.Quality == q {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown quality preset %q", r.Quality)
		}
	}
	return nil
}

// Job is an accepted request with its identity.
type Job struct {
	ID        string     `json:"job_id"`
	Request   JobRequest `json:"request"`
	Platform  Platform   `json:"platform"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewJob assigns an ID to a request.
func NewJob(req JobRequest) Job {
	return Job{
		ID:        uuid.New().String(),
		Request:   req,
		Platform:  DetectPlatform(req.URL),
		CreatedAt: time.Now().UTC(),
	}
}

// JobResult holds the outcome of a completed job. Success is true exactly
// when ErrorCategory is empty.
type JobResult struct {
	JobID         string        `json:"job_id"`
	URL           string        `json:"url"`
	Provider      Provider      `json:"provider"`
	Title         string        `json:"title,omitempty"`
	RemoteID      string        `json:"remote_id,omitempty"`
	RemoteURL     string        `json:"remote_url,omitempty"`
	Success       bool          `json:"success"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// ProgressEvent reports download or upload progress. Fraction is in [0,1]
// and non-decreasing within a phase. Adapters report the fraction of their
// own phase; the orchestrator rescales those into one job-level fraction
// before they reach a front end.
type ProgressEvent struct {
	Phase    Phase   `json:"phase"`
	Fraction float64 `json:"fraction"`
}

// ProgressFunc receives progress events. A nil ProgressFunc disables
// reporting. Implementations must not block.
type ProgressFunc func(ProgressEvent)

// SplitFolderPath breaks a slash-separated remote folder path into its
// segments, dropping empty ones. A nil result means the provider root.
func SplitFolderPath(folder string) []string {
	var segments []string
	for _, part := range strings.Split(folder, "/") {
		part = strings.TrimSpace(part)
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}
