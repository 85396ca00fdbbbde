package localdisk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
)

func writeTempVideo(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return p
}

func TestUploaderProvider(t *testing.T) {
	u := New(t.TempDir(), zerolog.Nop())
	if got := u.Provider(); got != domain.ProviderLocal {
		t.Errorf("Provider() = %q, want %q", got, domain.ProviderLocal)
	}
}

func TestUploadCopiesIntoFolderChain(t *testing.T) {
	base := t.TempDir()
	u := New(base, zerolog.Nop())

	var events []domain.ProgressEvent
	res, err := u.Upload(context.Background(), ports.UploadRequest{
		LocalPath: writeTempVideo(t, "local video bytes"),
		Filename:  "clip.mp4",
		Folder:    "videos/2025",
		OnProgress: func(e domain.ProgressEvent) {
			events = append(events, e)
		},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	want := filepath.Join(base, "videos", "2025", "clip.mp4")
	if res.RemoteID != want {
		t.Errorf("RemoteID = %q, want %q", res.RemoteID, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("destination not written: %v", err)
	}
	if string(data) != "local video bytes" {
		t.Errorf("destination content = %q, want source content", data)
	}
	if len(events) == 0 {
		t.Fatal("no progress events")
	}
	if last := events[len(events)-1]; last.Fraction != 1 {
		t.Errorf("final fraction = %v, want 1", last.Fraction)
	}
}

func TestUploadToBaseDir(t *testing.T) {
	base := t.TempDir()
	u := New(base, zerolog.Nop())

	res, err := u.Upload(context.Background(), ports.UploadRequest{
		LocalPath: writeTempVideo(t, "x"),
		Filename:  "clip.mp4",
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.RemoteID != filepath.Join(base, "clip.mp4") {
		t.Errorf("RemoteID = %q, want file directly under base", res.RemoteID)
	}
}

func TestUploadOverwritesExistingFile(t *testing.T) {
	base := t.TempDir()
	u := New(base, zerolog.Nop())

	dest := filepath.Join(base, "clip.mp4")
	if err := os.WriteFile(dest, []byte("old longer content"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := u.Upload(context.Background(), ports.UploadRequest{
		LocalPath: writeTempVideo(t, "new"),
		Filename:  "clip.mp4",
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "new" {
		t.Errorf("destination content = %q, want truncated overwrite", data)
	}
}

func TestUploadMissingSource(t *testing.T) {
	u := New(t.TempDir(), zerolog.Nop())

	_, err := u.Upload(context.Background(), ports.UploadRequest{
		LocalPath: "/does/not/exist.mp4",
		Filename:  "clip.mp4",
	})
	if err == nil {
		t.Fatal("Upload() expected error")
	}
	if got := domain.CategoryOf(err); got != domain.ErrorUpload {
		t.Errorf("CategoryOf() = %q, want %q", got, domain.ErrorUpload)
	}
}

func TestUploadFolderCreationFailure(t *testing.T) {
	base := t.TempDir()
	// A file where the folder should go makes MkdirAll fail.
	if err := os.WriteFile(filepath.Join(base, "videos"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	u := New(base, zerolog.Nop())

	_, err := u.Upload(context.Background(), ports.UploadRequest{
		LocalPath: writeTempVideo(t, "x"),
		Filename:  "clip.mp4",
		Folder:    "videos",
	})
	if err == nil {
		t.Fatal("Upload() expected error")
	}
	if got := domain.CategoryOf(err); got != domain.ErrorFolderCreation {
		t.Errorf("CategoryOf() = %q, want %q", got, domain.ErrorFolderCreation)
	}
}

func TestCheckConnection(t *testing.T) {
	u := New(t.TempDir(), zerolog.Nop())
	if err := u.CheckConnection(context.Background()); err != nil {
		t.Fatalf("CheckConnection() error = %v", err)
	}
}

func TestCheckConnectionMissingDirIsFine(t *testing.T) {
	u := New(filepath.Join(t.TempDir(), "not-yet-created"), zerolog.Nop())
	if err := u.CheckConnection(context.Background()); err != nil {
		t.Fatalf("CheckConnection() error = %v, want nil for missing dir", err)
	}
}

func TestCheckConnectionRejectsFileAsBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(base, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	u := New(base, zerolog.Nop())
	err := u.CheckConnection(context.Background())
	if err == nil {
		t.Fatal("CheckConnection() expected error for file base")
	}
	if got := domain.CategoryOf(err); got != domain.ErrorFolderCreation {
		t.Errorf("CategoryOf() = %q, want %q", got, domain.ErrorFolderCreation)
	}
}

func TestCheckConnectionUnconfigured(t *testing.T) {
	u := New("", zerolog.Nop())
	if err := u.CheckConnection(context.Background()); err == nil {
		t.Fatal("CheckConnection() expected error for empty base dir")
	}
}

func TestCheckConnectionLeavesNoProbeFiles(t *testing.T) {
	base := t.TempDir()
	u := New(base, zerolog.Nop())

	if err := u.CheckConnection(context.Background()); err != nil {
		t.Fatalf("CheckConnection() error = %v", err)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("probe files left behind: %v", entries)
	}
}
