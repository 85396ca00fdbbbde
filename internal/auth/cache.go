// Package auth resolves provider credentials. Each credential is looked up
// lazily on first use and cached for the life of the process. The Cache is
// plain injected state; nothing here is a singleton.
package auth

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
)

// Config names the credential sources.
type Config struct {
	// GoogleCredentialsFile is the OAuth2 client secret JSON downloaded
	// from the Google Cloud console.
	GoogleCredentialsFile string
	// GoogleTokenFile is where the granted token is persisted between runs.
	GoogleTokenFile string
	// YandexToken is the Yandex Disk OAuth token, usually from the
	// environment.
	YandexToken string
}

// Cache holds resolved credentials.
type Cache struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	yandex string
	google *http.Client
}

// NewCache creates an empty credential cache.
func NewCache(cfg Config, logger zerolog.Logger) *Cache {
	return &Cache{cfg: cfg, logger: logger}
}

// YandexToken returns the configured Yandex Disk OAuth token.
func (c *Cache) YandexToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.yandex != "" {
		return c.yandex, nil
	}
	if c.cfg.YandexToken == "" {
		return "", domain.Errorf(domain.ErrorAuth, "YANDEX_TOKEN is not set")
	}
	c.yandex = c.cfg.YandexToken
	c.logger.Debug().Msg("yandex disk token resolved")
	return c.yandex, nil
}
