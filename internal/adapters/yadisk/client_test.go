package yadisk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/retry"
)

func newTestClient(srv *httptest.Server, token string) *Client {
	c := NewClient(token, zerolog.Nop())
	c.baseURL = srv.URL
	c.retry = retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 1}
	return c
}

func TestClientCheckToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "OAuth tok" {
			t.Errorf("Authorization = %q, want %q", got, "OAuth tok")
		}
		json.NewEncoder(w).Encode(map[string]int64{"total_space": 1 << 40})
	}))
	defer srv.Close()

	if err := newTestClient(srv, "tok").CheckToken(context.Background()); err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
}

func TestClientCheckTokenUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "UnauthorizedError", "message": "unauthorized"})
	}))
	defer srv.Close()

	err := newTestClient(srv, "bad").CheckToken(context.Background())
	if err == nil {
		t.Fatal("CheckToken() expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CheckToken() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Code != "UnauthorizedError" {
		t.Errorf("Code = %q, want UnauthorizedError", apiErr.Code)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]int64{"total_space": 1})
	}))
	defer srv.Close()

	if err := newTestClient(srv, "tok").CheckToken(context.Background()); err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "DiskNotFoundError"})
	}))
	defer srv.Close()

	c := newTestClient(srv, "tok")
	exists, err := c.Exists(context.Background(), "/missing")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true, want false on 404")
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1", calls)
	}
}

func TestClientMkdirToleratesExistingDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   codeDirExists,
			"message": "resource already exists",
		})
	}))
	defer srv.Close()

	if err := newTestClient(srv, "tok").Mkdir(context.Background(), "/videos"); err != nil {
		t.Fatalf("Mkdir() on existing dir error = %v", err)
	}
}

func TestClientMkdirSurfacesOtherConflicts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "DiskPathDoesntExistsError"})
	}))
	defer srv.Close()

	if err := newTestClient(srv, "tok").Mkdir(context.Background(), "/a/b"); err == nil {
		t.Fatal("Mkdir() expected error for non-directory conflict")
	}
}

func TestClientUploadHref(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resources/upload" {
			t.Errorf("path = %q, want /resources/upload", r.URL.Path)
		}
		if got := r.URL.Query().Get("overwrite"); got != "true" {
			t.Errorf("overwrite = %q, want true", got)
		}
		if got := r.URL.Query().Get("path"); got != "/videos/clip.mp4" {
			t.Errorf("path query = %q, want /videos/clip.mp4", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"href": "https://uploader.example/sink"})
	}))
	defer srv.Close()

	href, err := newTestClient(srv, "tok").UploadHref(context.Background(), "/videos/clip.mp4", true)
	if err != nil {
		t.Fatalf("UploadHref() error = %v", err)
	}
	if href != "https://uploader.example/sink" {
		t.Errorf("UploadHref() = %q, want the advertised href", href)
	}
}

func TestClientUploadHrefEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"href": ""})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv, "tok").UploadHref(context.Background(), "/x", false); err == nil {
		t.Fatal("UploadHref() expected error on empty href")
	}
}

func TestClientUploadFile(t *testing.T) {
	var received []byte
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q, want PUT", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		received = body
		w.WriteHeader(http.StatusCreated)
	}))
	defer sink.Close()

	c := NewClient("tok", zerolog.Nop())
	payload := "video bytes"
	err := c.UploadFile(context.Background(), sink.URL, strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if string(received) != payload {
		t.Errorf("uploaded body = %q, want %q", received, payload)
	}
}

func TestClientUploadFileFailure(t *testing.T) {
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInsufficientStorage)
		json.NewEncoder(w).Encode(map[string]string{"error": "DiskSpaceError", "message": "no space"})
	}))
	defer sink.Close()

	c := NewClient("tok", zerolog.Nop())
	err := c.UploadFile(context.Background(), sink.URL, strings.NewReader("x"), 1)
	if err == nil {
		t.Fatal("UploadFile() expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("UploadFile() error = %v, want *APIError", err)
	}
	if apiErr.Code != "DiskSpaceError" {
		t.Errorf("Code = %q, want DiskSpaceError", apiErr.Code)
	}
}

func TestAPIErrorString(t *testing.T) {
	withCode := &APIError{StatusCode: 409, Code: "X", Message: "boom"}
	if got := withCode.Error(); !strings.Contains(got, "boom") || !strings.Contains(got, "409") {
		t.Errorf("Error() = %q, want message and status", got)
	}
	bare := &APIError{StatusCode: 502}
	if got := bare.Error(); !strings.Contains(got, "502") {
		t.Errorf("Error() = %q, want status", got)
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&APIError{StatusCode: 429}, true},
		{&APIError{StatusCode: 500}, true},
		{&APIError{StatusCode: 503}, true},
		{&APIError{StatusCode: 404}, false},
		{&APIError{StatusCode: 409}, false},
		{fmt.Errorf("dial tcp: connection refused"), true},
	}

	for _, tt := range tests {
		if got := transient(tt.err); got != tt.want {
			t.Errorf("transient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
