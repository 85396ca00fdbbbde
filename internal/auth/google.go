package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
)

// The app only needs access to files it created itself.
var driveScopes = []string{"https://www.googleapis.com/auth/drive.file"}

// How long to wait for the user to grant consent in the browser.
const consentTimeout = 5 * time.Minute

// GoogleClient returns an authorized HTTP client for the Drive API. The
// first call loads the persisted token, refreshing it when expired; when no
// usable token exists it runs the interactive OAuth2 consent flow with a
// local callback listener and persists the granted token.
func (c *Cache) GoogleClient(ctx context.Context) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.google != nil {
		return c.google, nil
	}

	conf, err := c.googleConfig()
	if err != nil {
		return nil, err
	}

	tok := c.loadToken()
	if tok != nil {
		fresh, terr := conf.TokenSource(ctx, tok).Token()
		if terr != nil {
			c.logger.Warn().Err(terr).Msg("stored google token unusable; interactive authorization required")
			tok = nil
		} else {
			if fresh.AccessToken != tok.AccessToken {
				c.saveToken(fresh)
			}
			tok = fresh
		}
	}
	if tok == nil {
		tok, err = c.authorize(ctx, conf)
		if err != nil {
			return nil, err
		}
		c.saveToken(tok)
	}

	src := &savingSource{
		src:   conf.TokenSource(context.Background(), tok),
		cache: c,
		last:  tok.AccessToken,
	}
	c.google = oauth2.NewClient(context.Background(), src)
	c.logger.Info().Msg("google drive credentials ready")
	return c.google, nil
}

func (c *Cache) googleConfig() (*oauth2.Config, error) {
	secret, err := os.ReadFile(c.cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, domain.NewError(domain.ErrorAuth,
			fmt.Errorf("google client secret file %s: %w", c.cfg.GoogleCredentialsFile, err))
	}
	conf, err := google.ConfigFromJSON(secret, driveScopes...)
	if err != nil {
		return nil, domain.NewError(domain.ErrorAuth, fmt.Errorf("parse google client secret: %w", err))
	}
	return conf, nil
}

// authorize runs the installed-app consent flow: a loopback listener
// receives the redirect, the browser is pointed at the consent page, and
// the returned code is exchanged for a token.
func (c *Cache) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, domain.NewError(domain.ErrorAuth, fmt.Errorf("start oauth callback listener: %w", err))
	}
	defer ln.Close()

	conf.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())
	state := uuid.New().String()
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline)

	c.logger.Info().Str("url", authURL).Msg("authorize this app in your browser")
	openBrowser(authURL)

	type callback struct {
		code string
		err  error
	}
	ch := make(chan callback, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") == "" {
			// favicon and other stray requests
			http.NotFound(w, r)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			ch <- callback{err: errors.New("oauth state mismatch")}
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization declined", http.StatusBadRequest)
			ch <- callback{err: fmt.Errorf("authorization declined: %s", e)}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			ch <- callback{err: errors.New("oauth callback carried no code")}
			return
		}
		fmt.Fprintln(w, "Authorized. You can close this tab.")
		ch <- callback{code: code}
	})}
	go srv.Serve(ln)
	defer srv.Close()

	waitCtx, cancel := context.WithTimeout(ctx, consentTimeout)
	defer cancel()

	select {
	case <-waitCtx.Done():
		return nil, domain.NewError(domain.ErrorAuth, fmt.Errorf("waiting for oauth callback: %w", waitCtx.Err()))
	case cb := <-ch:
		if cb.err != nil {
			return nil, domain.NewError(domain.ErrorAuth, cb.err)
		}
		tok, err := conf.Exchange(waitCtx, cb.code)
		if err != nil {
			return nil, domain.NewError(domain.ErrorAuth, fmt.Errorf("exchange authorization code: %w", err))
		}
		return tok, nil
	}
}

func (c *Cache) loadToken() *oauth2.Token {
	b, err := os.ReadFile(c.cfg.GoogleTokenFile)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("path", c.cfg.GoogleTokenFile).Msg("could not read stored google token")
		}
		return nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		c.logger.Warn().Err(err).Msg("stored google token is corrupt; reauthorization required")
		return nil
	}
	return &tok
}

func (c *Cache) saveToken(tok *oauth2.Token) {
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return
	}
	if dir := filepath.Dir(c.cfg.GoogleTokenFile); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o700)
	}
	if err := os.WriteFile(c.cfg.GoogleTokenFile, b, 0o600); err != nil {
		c.logger.Warn().Err(err).Str("path", c.cfg.GoogleTokenFile).Msg("could not persist google token")
		return
	}
	c.logger.Debug().Str("path", c.cfg.GoogleTokenFile).Msg("google token saved")
}

// savingSource persists refreshed tokens so the next run skips the consent
// flow.
type savingSource struct {
	mu    sync.Mutex
	src   oauth2.TokenSource
	cache *Cache
	last  string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, domain.NewError(domain.ErrorAuth, fmt.Errorf("refresh google token: %w", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		s.cache.saveToken(tok)
	}
	return tok, nil
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
