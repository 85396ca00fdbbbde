// Package s3 implements the storage backend for S3-compatible object
// stores (MinIO, AWS S3, and friends).
package s3

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
	"github.com/Relayn/video-downloader-uploader/internal/progress"
)

// Presigned links stay valid long enough to hand out, not forever.
const linkExpiry = 7 * 24 * time.Hour

// Config holds the connection settings for one bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Uploader implements ports.Uploader on an S3-compatible store. Folder
// segments become key prefixes; re-uploading the same key overwrites the
// object, which is how object stores behave.
type Uploader struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	client *minio.Client
}

// New creates an Uploader. The client is built, and the credentials
// checked, on first use.
func New(cfg Config, logger zerolog.Logger) *Uploader {
	return &Uploader{cfg: cfg, logger: logger}
}

// Provider reports the backend identity.
func (u *Uploader) Provider() domain.Provider { return domain.ProviderS3 }

func (u *Uploader) api() (*minio.Client, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client != nil {
		return u.client, nil
	}

	if u.cfg.Endpoint == "" {
		return nil, domain.Errorf(domain.ErrorAuth, "S3_ENDPOINT is not set")
	}
	if u.cfg.AccessKey == "" || u.cfg.SecretKey == "" {
		return nil, domain.Errorf(domain.ErrorAuth, "S3 access credentials are not set")
	}
	if u.cfg.Bucket == "" {
		return nil, domain.Errorf(domain.ErrorAuth, "S3_BUCKET is not set")
	}

	client, err := minio.New(u.cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(u.cfg.AccessKey, u.cfg.SecretKey, ""),
		Secure: u.cfg.UseSSL,
		Region: u.cfg.Region,
	})
	if err != nil {
		return nil, domain.NewError(domain.ErrorAuth, fmt.Errorf("s3 client: %w", err))
	}
	u.client = client
	return client, nil
}

// Upload streams the file into the bucket and returns a presigned link.
func (u *Uploader) Upload(ctx context.Context, req ports.UploadRequest) (*ports.UploadResult, error) {
	client, err := u.api()
	if err != nil {
		return nil, err
	}
	if err := u.ensureBucket(ctx, client); err != nil {
		return nil, err
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

	key := ObjectKey(req.Folder, req.Filename)
	body := progress.NewReader(f, st.Size(), domain.PhaseUploading, req.OnProgress)

	info, err := client.PutObject(ctx, u.cfg.Bucket, key, body, st.Size(), minio.PutObjectOptions{
		ContentType: contentTypeFor(req.Filename),
	})
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpload, fmt.Errorf("put s3://%s/%s: %w", u.cfg.Bucket, key, err))
	}

	remoteURL := ""
	if link, err := client.PresignedGetObject(ctx, u.cfg.Bucket, key, linkExpiry, url.Values{}); err != nil {
		// The object arrived; a missing share link is not an upload failure.
		u.logger.Warn().Err(err).Str("key", key).Msg("could not presign download link")
	} else {
		remoteURL = link.String()
	}

	u.logger.Info().Str("bucket", u.cfg.Bucket).Str("key", key).Int64("size", info.Size).Msg("uploaded to s3")
	return &ports.UploadResult{RemoteID: key, RemoteURL: remoteURL}, nil
}

// ensureBucket creates the configured bucket when it does not exist yet.
// Racing creators are tolerated.
func (u *Uploader) ensureBucket(ctx context.Context, client *minio.Client) error {
	exists, err := client.BucketExists(ctx, u.cfg.Bucket)
	if err != nil {
		return domain.NewError(domain.ErrorFolderCreation, fmt.Errorf("check bucket %s: %w", u.cfg.Bucket, err))
	}
	if exists {
		return nil
	}
	err = client.MakeBucket(ctx, u.cfg.Bucket, minio.MakeBucketOptions{Region: u.cfg.Region})
	if err != nil {
		if exists, eerr := client.BucketExists(ctx, u.cfg.Bucket); eerr == nil && exists {
			return nil
		}
		return domain.NewError(domain.ErrorFolderCreation, fmt.Errorf("create bucket %s: %w", u.cfg.Bucket, err))
	}
	u.logger.Info().Str("bucket", u.cfg.Bucket).Msg("created s3 bucket")
	return nil
}

// CheckConnection verifies credentials and reachability with a bucket probe.
func (u *Uploader) CheckConnection(ctx context.Context) error {
	client, err := u.api()
	if err != nil {
		return err
	}
	if _, err := client.BucketExists(ctx, u.cfg.Bucket); err != nil {
		return domain.NewError(domain.ErrorAuth, fmt.Errorf("s3 endpoint %s: %w", u.cfg.Endpoint, err))
	}
	return nil
}

// ObjectKey joins folder segments and the filename into an object key.
func ObjectKey(folder, filename string) string {
	segments := append(domain.SplitFolderPath(folder), filename)
	return path.Join(segments...)
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")) {
	case "mp4", "m4v":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "mkv":
		return "video/x-matroska"
	case "webm":
		return "video/webm"
	case "m4a":
		return "audio/mp4"
	case "mp3":
		return "audio/mpeg"
	case "opus", "ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
