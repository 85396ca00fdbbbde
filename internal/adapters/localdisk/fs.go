// Package localdisk implements the "save locally" backend: the uploaded
// file is copied into a folder on this machine instead of a cloud provider.
package localdisk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
	"github.com/Relayn/video-downloader-uploader/internal/progress"
)

// Uploader copies files under BaseDir. Copying to an existing destination
// truncates it, matching what a user expects from saving into a folder.
type Uploader struct {
	baseDir string
	logger  zerolog.Logger
}

// New creates an Uploader rooted at baseDir.
func New(baseDir string, logger zerolog.Logger) *Uploader {
	return &Uploader{baseDir: baseDir, logger: logger}
}

// Provider reports the backend identity.
func (u *Uploader) Provider() domain.Provider { return domain.ProviderLocal }

// Upload copies the file into baseDir/<folder>/<filename>, creating the
// folder chain first. The destination path doubles as the remote reference.
func (u *Uploader) Upload(ctx context.Context, req ports.UploadRequest) (*ports.UploadResult, error) {
	dir := u.baseDir
	for _, segment := range domain.SplitFolderPath(req.Folder) {
		dir = filepath.Join(dir, segment)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.NewError(domain.ErrorFolderCreation, fmt.Errorf("create directory %s: %w", dir, err))
	}

	src, err := os.Open(req.LocalPath)
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpload, fmt.Errorf("open %s: %w", req.LocalPath, err))
	}
	defer src.Close()
	st, err := src.Stat()
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpload, err)
	}

	dest := filepath.Join(dir, req.Filename)
	dst, err := os.Create(dest)
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpload, fmt.Errorf("create %s: %w", dest, err))
	}

	body := progress.NewReader(src, st.Size(), domain.PhaseUploading, req.OnProgress)
	if _, err := io.Copy(dst, body); err != nil {
		dst.Close()
		_ = os.Remove(dest)
		return nil, domain.NewError(domain.ErrorUpload, fmt.Errorf("copy to %s: %w", dest, err))
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dest)
		return nil, domain.NewError(domain.ErrorUpload, fmt.Errorf("close %s: %w", dest, err))
	}

	u.logger.Info().Str("path", dest).Msg("saved locally")
	return &ports.UploadResult{RemoteID: dest, RemoteURL: dest}, nil
}

// CheckConnection verifies the base directory exists and is writable, the
// same preconditions the save would hit later.
func (u *Uploader) CheckConnection(ctx context.Context) error {
	if u.baseDir == "" {
		return domain.Errorf(domain.ErrorFolderCreation, "local save directory is not configured")
	}
	st, err := os.Stat(u.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			// Created on first upload; only its parent must be usable.
			return nil
		}
		return domain.NewError(domain.ErrorFolderCreation, fmt.Errorf("stat %s: %w", u.baseDir, err))
	}
	if !st.IsDir() {
		return domain.Errorf(domain.ErrorFolderCreation, "%s is not a directory", u.baseDir)
	}

	probe, err := os.CreateTemp(u.baseDir, ".vdu-write-check-*")
	if err != nil {
		return domain.NewError(domain.ErrorFolderCreation, fmt.Errorf("directory %s is not writable: %w", u.baseDir, err))
	}
	name := probe.Name()
	probe.Close()
	_ = os.Remove(name)
	return nil
}
