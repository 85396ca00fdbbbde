// Package gdrive implements the Google Drive storage backend.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Relayn/video-downloader-uploader/internal/auth"
	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
)

const folderMimeType = "application/vnd.google-apps.folder"

const uploadChunkSize = 8 * 1024 * 1024

// Uploader implements ports.Uploader on Google Drive. Folder chains are
// reused between uploads; files are not deduplicated, so uploading the same
// name twice leaves two files.
type Uploader struct {
	creds  *auth.Cache
	logger zerolog.Logger

	mu  sync.Mutex
	svc *drive.Service
}

// New creates an Uploader that authorizes on first use.
func New(creds *auth.Cache, logger zerolog.Logger) *Uploader {
	return &Uploader{creds: creds, logger: logger}
}

// Provider reports the backend identity.
func (u *Uploader) Provider() domain.Provider { return domain.ProviderGoogleDrive }

func (u *Uploader) service(ctx context.Context) (*drive.Service, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.svc != nil {
		return u.svc, nil
	}
	client, err := u.creds.GoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, domain.NewError(domain.ErrorAuth, fmt.Errorf("create drive service: %w", err))
	}
	u.svc = svc
	return svc, nil
}

// Upload walks the folder chain under the Drive root and streams the file
// into the final folder.
func (u *Uploader) Upload(ctx context.Context, req ports.UploadRequest) (*ports.UploadResult, error) {
	svc, err := u.service(ctx)
	if err != nil {
		return nil, err
	}

	parentID := "root"
	for _, name := range domain.SplitFolderPath(req.Folder) {
		parentID, err = u.findOrCreateFolder(ctx, svc, parentID, name)
		if err != nil {
			return nil, err
		}
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
	size := st.Size()

	meta := &drive.File{
		Name:    req.Filename,
		Parents: []string{parentID},
	}
	created, err := svc.Files.Create(meta).
		Fields("id, webViewLink").
		Media(f, googleapi.ChunkSize(uploadChunkSize)).
		ProgressUpdater(func(current, total int64) {
			if req.OnProgress == nil {
				return
			}
			den := total
			if den <= 0 {
				den = size
			}
			if den <= 0 {
				return
			}
			fraction := float64(current) / float64(den)
			if fraction > 1 {
				fraction = 1
			}
			req.OnProgress(domain.ProgressEvent{Phase: domain.PhaseUploading, Fraction: fraction})
		}).
		Context(ctx).
		Do()
	if err != nil {
		return nil, categorize(err, domain.ErrorUpload)
	}
	if req.OnProgress != nil {
		req.OnProgress(domain.ProgressEvent{Phase: domain.PhaseUploading, Fraction: 1})
	}

	u.logger.Info().Str("file_id", created.Id).Str("name", req.Filename).Msg("uploaded to google drive")
	return &ports.UploadResult{RemoteID: created.Id, RemoteURL: created.WebViewLink}, nil
}

// findOrCreateFolder returns the ID of the named folder under parentID,
// creating it when absent.
func (u *Uploader) findOrCreateFolder(ctx context.Context, svc *drive.Service, parentID, name string) (string, error) {
	list, err := svc.Files.List().
		Q(buildFolderQuery(parentID, name)).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", categorize(err, domain.ErrorFolderCreation)
	}
	if len(list.Files) > 0 {
		u.logger.Debug().Str("folder", name).Str("folder_id", list.Files[0].Id).Msg("found existing drive folder")
		return list.Files[0].Id, nil
	}

	folder, err := svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", categorize(err, domain.ErrorFolderCreation)
	}
	u.logger.Info().Str("folder", name).Str("folder_id", folder.Id).Msg("created drive folder")
	return folder.Id, nil
}

// CheckConnection verifies the credentials with a lightweight about call.
func (u *Uploader) CheckConnection(ctx context.Context) error {
	svc, err := u.service(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.About.Get().Fields("user").Context(ctx).Do(); err != nil {
		return categorize(err, domain.ErrorAuth)
	}
	return nil
}

func buildFolderQuery(parentID, name string) string {
	return fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
		escapeQuery(parentID), escapeQuery(name), folderMimeType)
}

// escapeQuery escapes a value for a Drive search expression.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func categorize(err error, fallback domain.ErrorCategory) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusUnauthorized {
		return domain.Categorize(domain.ErrorAuth, err)
	}
	return domain.Categorize(fallback, err)
}
