package yadisk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/auth"
	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
	"github.com/Relayn/video-downloader-uploader/internal/progress"
)

// Uploader implements ports.Uploader on Yandex Disk. Re-uploading a file to
// the same path overwrites it; the API is asked to do so explicitly.
type Uploader struct {
	creds  *auth.Cache
	logger zerolog.Logger

	mu     sync.Mutex
	client *Client
}

// New creates an Uploader that resolves its token on first use.
func New(creds *auth.Cache, logger zerolog.Logger) *Uploader {
	return &Uploader{creds: creds, logger: logger}
}

// Provider reports the backend identity.
func (u *Uploader) Provider() domain.Provider { return domain.ProviderYandexDisk }

func (u *Uploader) api() (*Client, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client == nil {
		token, err := u.creds.YandexToken()
		if err != nil {
			return nil, err
		}
		u.client = NewClient(token, u.logger)
	}
	return u.client, nil
}

// Upload creates the folder chain, streams the file and returns its
// download link.
func (u *Uploader) Upload(ctx context.Context, req ports.UploadRequest) (*ports.UploadResult, error) {
	api, err := u.api()
	if err != nil {
		return nil, err
	}

	folder := ""
	for _, segment := range domain.SplitFolderPath(req.Folder) {
		folder = folder + "/" + segment
		exists, err := api.Exists(ctx, folder)
		if err != nil {
			return nil, categorize(err, domain.ErrorFolderCreation)
		}
		if !exists {
			if err := api.Mkdir(ctx, folder); err != nil {
				return nil, categorize(err, domain.ErrorFolderCreation)
			}
			u.logger.Debug().Str("folder", folder).Msg("created remote folder")
		}
	}

	remotePath := folder + "/" + req.Filename
	href, err := api.UploadHref(ctx, remotePath, true)
	if err != nil {
		return nil, categorize(err, domain.ErrorUpload)
	}

	f, err := os.Open(req.LocalPath)
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpload, fmt.Errorf("open %s: %w", req.LocalPath, err))
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpload, err)
	}

	body := progress.NewReader(f, st.Size(), domain.PhaseUploading, req.OnProgress)
	if err := api.UploadFile(ctx, href, body, st.Size()); err != nil {
		return nil, categorize(err, domain.ErrorUpload)
	}

	link, err := api.DownloadHref(ctx, remotePath)
	if err != nil {
		return nil, categorize(err, domain.ErrorUpload)
	}

	u.logger.Info().Str("path", remotePath).Msg("uploaded to yandex disk")
	return &ports.UploadResult{RemoteID: remotePath, RemoteURL: link}, nil
}

// CheckConnection validates the token against the API.
func (u *Uploader) CheckConnection(ctx context.Context) error {
	api, err := u.api()
	if err != nil {
		return err
	}
	if err := api.CheckToken(ctx); err != nil {
		return categorize(err, domain.ErrorAuth)
	}
	return nil
}

// categorize maps API failures to the job error taxonomy. Authorization
// failures stay auth errors no matter which call surfaced them.
func categorize(err error, fallback domain.ErrorCategory) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return domain.Categorize(domain.ErrorAuth, err)
	}
	return domain.Categorize(fallback, err)
}
