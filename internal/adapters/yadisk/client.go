// Package yadisk talks to the Yandex Disk REST API. There is no official Go
// SDK; the surface the uploader needs is small enough to call directly.
package yadisk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/retry"
)

const defaultBaseURL = "https://cloud-api.yandex.net/v1/disk"

// Returned with http 409 when the directory is already there.
const codeDirExists = "DiskPathPointsToExistentDirectoryError"

// APIError is a decoded Yandex Disk error response.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("yandex disk: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("yandex disk: http %d", e.StatusCode)
}

// transient reports whether a call is worth retrying. Rate limiting and
// server-side failures are; other API answers are final.
func transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

// Client is a minimal Yandex Disk REST client.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	uploadc *http.Client
	retry   retry.Config
	logger  zerolog.Logger
}

// NewClient creates a client using the given OAuth token.
func NewClient(token string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		httpc: &http.Client{
			Timeout: 5 * time.Minute,
		},
		uploadc: &http.Client{
			Timeout: 30 * time.Minute, // videos can be large
		},
		retry:  retry.DefaultConfig(),
		logger: logger,
	}
}

// CheckToken verifies the token against the disk info endpoint.
func (c *Client) CheckToken(ctx context.Context) error {
	var info struct {
		TotalSpace int64 `json:"total_space"`
	}
	return c.doJSON(ctx, http.MethodGet, "", nil, &info, http.StatusOK)
}

// Exists reports whether a resource exists at diskPath.
func (c *Client) Exists(ctx context.Context, diskPath string) (bool, error) {
	q := url.Values{"path": {diskPath}, "fields": {"path"}}
	err := c.doJSON(ctx, http.MethodGet, "/resources", q, nil, http.StatusOK)
	if err == nil {
		return true, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// Mkdir creates a directory at diskPath. Creating a directory that already
// exists is not an error.
func (c *Client) Mkdir(ctx context.Context, diskPath string) error {
	q := url.Values{"path": {diskPath}}
	err := c.doJSON(ctx, http.MethodPut, "/resources", q, nil, http.StatusCreated)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict && apiErr.Code == codeDirExists {
		return nil
	}
	return err
}

// UploadHref requests a one-time upload URL for diskPath.
func (c *Client) UploadHref(ctx context.Context, diskPath string, overwrite bool) (string, error) {
	var out struct {
		Href string `json:"href"`
	}
	q := url.Values{
		"path":      {diskPath},
		"overwrite": {strconv.FormatBool(overwrite)},
	}
	if err := c.doJSON(ctx, http.MethodGet, "/resources/upload", q, &out, http.StatusOK); err != nil {
		return "", err
	}
	if out.Href == "" {
		return "", errors.New("yandex disk: empty upload href")
	}
	return out.Href, nil
}

// UploadFile streams body to a previously requested upload href. The href
// is pre-authorized, so no retry: the body is consumed on the first pass.
func (c *Client) UploadFile(ctx context.Context, href string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, href, body)
	if err != nil {
		return err
	}
	req.ContentLength = size

	resp, err := c.uploadc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return decodeAPIError(resp)
	}
	return nil
}

// DownloadHref fetches a download link for diskPath.
func (c *Client) DownloadHref(ctx context.Context, diskPath string) (string, error) {
	var out struct {
		Href string `json:"href"`
	}
	q := url.Values{"path": {diskPath}}
	if err := c.doJSON(ctx, http.MethodGet, "/resources/download", q, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.Href, nil
}

// doJSON performs an API request with retries on transient failures and
// decodes the body into out when the status matches want.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, out any, want int) error {
	return retry.Do(ctx, c.retry, transient, func(ctx context.Context) error {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, method, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "OAuth "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != want {
			return decodeAPIError(resp)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode yandex disk response: %w", err)
			}
		}
		return nil
	})
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}
	return apiErr
}
