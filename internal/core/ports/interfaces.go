package ports

import (
	"context"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
)

// DownloadRequest describes a single video fetch to local disk.
type DownloadRequest struct {
	URL string
	// Dir is the directory the file is written into. It must exist.
	Dir string
	// Filename overrides the title-based name when non-empty. Supplied
	// without extension; the downloader appends the real one.
	Filename string
	// Quality is one of the domain quality presets. Empty means best.
	Quality    string
	OnProgress domain.ProgressFunc
}

// DownloadResult reports where a downloaded video landed.
type DownloadResult struct {
	Path  string
	Title string
	Ext   string
	Size  int64
}

// Downloader fetches a video from a supported platform URL to local disk.
type Downloader interface {
	// Download fetches the video described by req. The returned file is
	// guaranteed to exist and be non-empty.
	Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error)
}

// ToolChecker is implemented by downloaders that can verify their external
// binaries before a job runs.
type ToolChecker interface {
	CheckTools(ctx context.Context) error
}

// UploadRequest describes a single file transfer to a storage backend.
type UploadRequest struct {
	LocalPath string
	// Folder is a slash-separated remote folder path. Empty means the
	// provider root. Missing segments are created.
	Folder     string
	Filename   string
	OnProgress domain.ProgressFunc
}

// UploadResult identifies the uploaded file at the provider.
type UploadResult struct {
	RemoteID  string
	RemoteURL string
}

// Uploader sends a downloaded file to one storage backend.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
	// CheckConnection verifies credentials and reachability without
	// transferring anything.
	CheckConnection(ctx context.Context) error
	Provider() domain.Provider
}
