// Package service wires the downloader and the uploaders into the one
// entry point front ends call.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
)

// Orchestrator runs one job at a time: download to a private temp dir,
// upload to the requested provider, delete the temp dir. Failures never
// escape Run; they come back inside the JobResult.
type Orchestrator struct {
	downloader ports.Downloader
	uploaders  map[domain.Provider]ports.Uploader
	tempRoot   string
	logger     zerolog.Logger
}

// New creates an Orchestrator. tempRoot is where per-job download
// directories are created; empty means the OS default.
func New(downloader ports.Downloader, uploaders []ports.Uploader, tempRoot string, logger zerolog.Logger) *Orchestrator {
	byProvider := make(map[domain.Provider]ports.Uploader, len(uploaders))
	for _, u := range uploaders {
		byProvider[u.Provider()] = u
	}
	return &Orchestrator{
		downloader: downloader,
		uploaders:  byProvider,
		tempRoot:   tempRoot,
		logger:     logger,
	}
}

// Run executes req to completion. The returned result always reports
// either success with a remote reference, or a failure category with its
// message; Run itself never fails.
func (o *Orchestrator) Run(ctx context.Context, req domain.JobRequest, onProgress domain.ProgressFunc) *domain.JobResult {
	return o.RunJob(ctx, domain.NewJob(req), onProgress)
}

// RunJob is Run for callers that assigned the job ID themselves, so they
// can hand it out before the job finishes.
func (o *Orchestrator) RunJob(ctx context.Context, job domain.Job, onProgress domain.ProgressFunc) (result *domain.JobResult) {
	req := job.Request
	start := time.Now()
	jl := o.logger.With().Str("job_id", job.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			jl.Error().Interface("panic", r).Msg("job panicked")
			result = o.fail(jl, job, start, domain.Errorf(domain.ErrorUnexpected, "internal error: %v", r))
		}
	}()

	jl.Info().
		Str("url", req.URL).
		Str("provider", string(req.Provider)).
		Str("folder", req.Folder).
		Msg("job started")

	if err := req.Validate(); err != nil {
		return o.fail(jl, job, start, err)
	}
	uploader, ok := o.uploaders[req.Provider]
	if !ok {
		return o.fail(jl, job, start, domain.Errorf(domain.ErrorUnexpected, "no uploader registered for provider %q", req.Provider))
	}

	tempDir, err := os.MkdirTemp(o.tempRoot, "vdu-*")
	if err != nil {
		return o.fail(jl, job, start, domain.NewError(domain.ErrorUnexpected, fmt.Errorf("create temp dir: %w", err)))
	}
	jl.Debug().Str("dir", tempDir).Msg("temp dir created")

	jl.Info().Str("phase", string(domain.PhaseDownloading)).Msg("phase change")
	emit(onProgress, domain.PhaseDownloading, 0)

	downloaded, err := o.downloader.Download(ctx, ports.DownloadRequest{
		URL:        req.URL,
		Dir:        tempDir,
		Filename:   req.Filename,
		Quality:    req.Quality,
		OnProgress: scaleProgress(onProgress, domain.PhaseDownloading, 0, 0.5),
	})
	if err != nil {
		o.cleanup(jl, tempDir)
		return o.fail(jl, job, start, domain.Categorize(domain.ErrorDownload, err))
	}

	// The downloader promises a non-empty file; trust but verify before
	// the job is allowed into the upload phase.
	if err := verifyDownloaded(downloaded.Path); err != nil {
		o.cleanup(jl, tempDir)
		return o.fail(jl, job, start, domain.Categorize(domain.ErrorDownload, err))
	}

	jl.Info().Str("phase", string(domain.PhaseUploading)).Str("file", downloaded.Path).Msg("phase change")
	emit(onProgress, domain.PhaseUploading, 0.5)

	uploaded, err := uploader.Upload(ctx, ports.UploadRequest{
		LocalPath:  downloaded.Path,
		Folder:     req.Folder,
		Filename:   filepath.Base(downloaded.Path),
		OnProgress: scaleProgress(onProgress, domain.PhaseUploading, 0.5, 1.0),
	})
	if err != nil {
		o.cleanup(jl, tempDir)
		return o.fail(jl, job, start, domain.Categorize(domain.ErrorUpload, err))
	}

	// The file is in the cloud; a leftover temp dir is log-worthy, not a
	// job failure.
	o.cleanup(jl, tempDir)
	emit(onProgress, domain.PhaseUploading, 1)

	result = &domain.JobResult{
		JobID:       job.ID,
		URL:         req.URL,
		Provider:    req.Provider,
		Title:       downloaded.Title,
		RemoteID:    uploaded.RemoteID,
		RemoteURL:   uploaded.RemoteURL,
		Success:     true,
		Elapsed:     time.Since(start),
		CompletedAt: time.Now().UTC(),
	}
	jl.Info().
		Str("remote_id", result.RemoteID).
		Dur("elapsed", result.Elapsed).
		Msg("job completed")
	return result
}

// fail converts err into the failure result, logging category and cause.
func (o *Orchestrator) fail(jl zerolog.Logger, job domain.Job, start time.Time, err error) *domain.JobResult {
	category := domain.CategoryOf(err)
	jl.Error().
		Str("category", string(category)).
		Err(err).
		Msg("job failed")
	return &domain.JobResult{
		JobID:         job.ID,
		URL:           job.Request.URL,
		Provider:      job.Request.Provider,
		Success:       false,
		ErrorCategory: category,
		ErrorMessage:  err.Error(),
		Elapsed:       time.Since(start),
		CompletedAt:   time.Now().UTC(),
	}
}

// cleanup removes the per-job temp dir. Best effort: a failure here is
// logged and never replaces the job outcome.
func (o *Orchestrator) cleanup(jl zerolog.Logger, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		jl.Warn().Err(err).Str("dir", dir).Msg("temp dir cleanup failed")
		return
	}
	jl.Debug().Str("dir", dir).Msg("temp dir removed")
}

func verifyDownloaded(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("downloaded file missing: %w", err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("downloaded file is empty: %s", path)
	}
	return nil
}

// emit sends a bare phase-boundary event.
func emit(fn domain.ProgressFunc, phase domain.Phase, fraction float64) {
	if fn != nil {
		fn(domain.ProgressEvent{Phase: phase, Fraction: fraction})
	}
}

// scaleProgress maps an adapter's phase-local fraction [0,1] into the
// [lo,hi] slice of the whole job, so front ends see one bar that runs
// 0-50% while downloading and 50-100% while uploading.
func scaleProgress(fn domain.ProgressFunc, phase domain.Phase, lo, hi float64) domain.ProgressFunc {
	if fn == nil {
		return nil
	}
	return func(ev domain.ProgressEvent) {
		f := ev.Fraction
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		fn(domain.ProgressEvent{Phase: phase, Fraction: lo + f*(hi-lo)})
	}
}

// Preflight verifies the job could plausibly run: external tools are
// present and the provider accepts our credentials. Nothing is
// transferred.
func (o *Orchestrator) Preflight(ctx context.Context, provider domain.Provider) error {
	var problems []error
	if checker, ok := o.downloader.(ports.ToolChecker); ok {
		if err := checker.CheckTools(ctx); err != nil {
			problems = append(problems, err)
		}
	}
	uploader, ok := o.uploaders[provider]
	if !ok {
		problems = append(problems, fmt.Errorf("no uploader registered for provider %q", provider))
	} else if err := uploader.CheckConnection(ctx); err != nil {
		problems = append(problems, fmt.Errorf("%s: %w", provider, err))
	}
	return errors.Join(problems...)
}

// Providers lists the uploaders this orchestrator can target.
func (o *Orchestrator) Providers() []domain.Provider {
	out := make([]domain.Provider, 0, len(o.uploaders))
	for p := range o.uploaders {
		out = append(out, p)
	}
	return out
}
