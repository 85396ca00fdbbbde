package s3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
	"github.com/Relayn/video-downloader-uploader/internal/core/ports"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		folder   string
		filename string
		want     string
	}{
		{"", "clip.mp4", "clip.mp4"},
		{"videos", "clip.mp4", "videos/clip.mp4"},
		{"videos/2025", "clip.mp4", "videos/2025/clip.mp4"},
		{"/videos//2025/", "clip.mp4", "videos/2025/clip.mp4"},
	}

	for _, tt := range tests {
		if got := ObjectKey(tt.folder, tt.filename); got != tt.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", tt.folder, tt.filename, got, tt.want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"clip.mp4", "video/mp4"},
		{"clip.MP4", "video/mp4"},
		{"clip.mkv", "video/x-matroska"},
		{"clip.webm", "video/webm"},
		{"track.m4a", "audio/mp4"},
		{"track.mp3", "audio/mpeg"},
		{"track.opus", "audio/ogg"},
		{"readme", "application/octet-stream"},
		{"archive.zip", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := contentTypeFor(tt.filename); got != tt.want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestUploaderProvider(t *testing.T) {
	u := New(Config{}, zerolog.Nop())
	if got := u.Provider(); got != domain.ProviderS3 {
		t.Errorf("Provider() = %q, want %q", got, domain.ProviderS3)
	}
}

func TestAPIRequiresConfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no endpoint", Config{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{"no access key", Config{Endpoint: "localhost:9000", SecretKey: "s", Bucket: "b"}},
		{"no secret key", Config{Endpoint: "localhost:9000", AccessKey: "a", Bucket: "b"}},
		{"no bucket", Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := New(tt.cfg, zerolog.Nop())
			_, err := u.api()
			if err == nil {
				t.Fatal("api() expected error")
			}
			if got := domain.CategoryOf(err); got != domain.ErrorAuth {
				t.Errorf("CategoryOf() = %q, want %q", got, domain.ErrorAuth)
			}
		})
	}
}

func TestAPIBuildsClientOnce(t *testing.T) {
	u := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"}, zerolog.Nop())

	first, err := u.api()
	if err != nil {
		t.Fatalf("api() error = %v", err)
	}
	second, err := u.api()
	if err != nil {
		t.Fatalf("api() second call error = %v", err)
	}
	if first != second {
		t.Error("api() rebuilt the client on the second call")
	}
}

func TestUploadWithoutCredentialsFailsBeforeNetwork(t *testing.T) {
	u := New(Config{}, zerolog.Nop())

	_, err := u.Upload(context.Background(), ports.UploadRequest{
		LocalPath: "/nope.mp4",
		Filename:  "clip.mp4",
	})
	if err == nil {
		t.Fatal("Upload() expected error with empty config")
	}
	if got := domain.CategoryOf(err); got != domain.ErrorAuth {
		t.Errorf("CategoryOf() = %q, want %q", got, domain.ErrorAuth)
	}
}

func TestCheckConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %q, want HEAD", r.Method)
		}
		if !strings.HasPrefix(r.URL.Path, "/videos") {
			t.Errorf("path = %q, want bucket probe", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := New(Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "a",
		SecretKey: "s",
		Bucket:    "videos",
		Region:    "us-east-1",
	}, zerolog.Nop())

	if err := u.CheckConnection(context.Background()); err != nil {
		t.Fatalf("CheckConnection() error = %v", err)
	}
}

func TestCheckConnectionAccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	u := New(Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "bad",
		SecretKey: "bad",
		Bucket:    "videos",
		Region:    "us-east-1",
	}, zerolog.Nop())

	err := u.CheckConnection(context.Background())
	if err == nil {
		t.Fatal("CheckConnection() expected error on 403")
	}
	if got := domain.CategoryOf(err); got != domain.ErrorAuth {
		t.Errorf("CategoryOf() = %q, want %q", got, domain.ErrorAuth)
	}
}
