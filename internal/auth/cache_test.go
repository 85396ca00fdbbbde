package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
)

func TestYandexToken(t *testing.T) {
	c := NewCache(Config{YandexToken: "y0_secret"}, zerolog.Nop())

	tok, err := c.YandexToken()
	if err != nil {
		t.Fatalf("YandexToken() error = %v", err)
	}
	if tok != "y0_secret" {
		t.Errorf("YandexToken() = %q, want %q", tok, "y0_secret")
	}
}

func TestYandexTokenMissing(t *testing.T) {
	c := NewCache(Config{}, zerolog.Nop())

	_, err := c.YandexToken()
	if err == nil {
		t.Fatal("YandexToken() expected error when unset")
	}
	if got := domain.CategoryOf(err); got != domain.ErrorAuth {
		t.Errorf("CategoryOf() = %q, want %q", got, domain.ErrorAuth)
	}
}

const clientSecretJSON = `{
  "installed": {
    "client_id": "client-id.apps.googleusercontent.com",
    "client_secret": "shhh",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost"]
  }
}`

func TestGoogleConfigParsesClientSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(clientSecretJSON), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	c := NewCache(Config{GoogleCredentialsFile: path}, zerolog.Nop())
	conf, err := c.googleConfig()
	if err != nil {
		t.Fatalf("googleConfig() error = %v", err)
	}
	if conf.ClientID != "client-id.apps.googleusercontent.com" {
		t.Errorf("ClientID = %q, want value from file", conf.ClientID)
	}
	if len(conf.Scopes) == 0 {
		t.Error("googleConfig() dropped the drive scope")
	}
}

func TestGoogleConfigMissingFile(t *testing.T) {
	c := NewCache(Config{GoogleCredentialsFile: filepath.Join(t.TempDir(), "nope.json")}, zerolog.Nop())

	_, err := c.googleConfig()
	if err == nil {
		t.Fatal("googleConfig() expected error for missing file")
	}
	if got := domain.CategoryOf(err); got != domain.ErrorAuth {
		t.Errorf("CategoryOf() = %q, want %q", got, domain.ErrorAuth)
	}
}

func TestGoogleConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	c := NewCache(Config{GoogleCredentialsFile: path}, zerolog.Nop())
	if _, err := c.googleConfig(); err == nil {
		t.Fatal("googleConfig() expected error for malformed file")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	c := NewCache(Config{GoogleTokenFile: path}, zerolog.Nop())

	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).UTC(),
	}
	c.saveToken(tok)

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", st.Mode().Perm())
	}

	loaded := c.loadToken()
	if loaded == nil {
		t.Fatal("loadToken() = nil after save")
	}
	if loaded.AccessToken != tok.AccessToken || loaded.RefreshToken != tok.RefreshToken {
		t.Errorf("loadToken() = %+v, want saved token", loaded)
	}
}

func TestLoadTokenMissing(t *testing.T) {
	c := NewCache(Config{GoogleTokenFile: filepath.Join(t.TempDir(), "token.json")}, zerolog.Nop())
	if tok := c.loadToken(); tok != nil {
		t.Errorf("loadToken() = %+v, want nil for missing file", tok)
	}
}

func TestLoadTokenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	c := NewCache(Config{GoogleTokenFile: path}, zerolog.Nop())
	if tok := c.loadToken(); tok != nil {
		t.Errorf("loadToken() = %+v, want nil for corrupt file", tok)
	}
}

func TestSaveTokenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "token.json")
	c := NewCache(Config{GoogleTokenFile: path}, zerolog.Nop())

	c.saveToken(&oauth2.Token{AccessToken: "a"})

	if _, err := os.Stat(path); err != nil {
		t.Errorf("token file not created in nested dir: %v", err)
	}
}
