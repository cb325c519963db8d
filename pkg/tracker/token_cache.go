package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

const (
	keyringService = "ai-army"
	keyringAccount = "github-oauth"
	tokenFileName  = "github-token.json"
)

// storedToken is the serialized form of a cached token. Device-flow tokens
// for GitHub OAuth apps neither expire nor refresh, so the access token and
// its type are the whole record.
type storedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// tokenBackend reads and writes the raw serialized token. read returns
// (nil, nil) when nothing is cached.
type tokenBackend interface {
	read() ([]byte, error)
	write(raw []byte) error
	remove() error
}

// TokenCache persists the OAuth token between runs. Secrets go to the OS
// keychain when one is reachable; headless hosts fall back to a mode-0600
// file under the user config dir.
type TokenCache struct {
	backend tokenBackend
}

// NewTokenCache picks the best available backend for this host.
func NewTokenCache() *TokenCache {
	if keyringAvailable() {
		return &TokenCache{backend: keyringBackend{}}
	}
	return &TokenCache{backend: fileBackend{path: tokenFilePath()}}
}

// keyringAvailable probes the OS secret service without storing anything:
// deleting a never-created entry answers ErrNotFound on a working keyring
// and a platform error on a headless host.
func keyringAvailable() bool {
	err := keyring.Delete(keyringService, keyringAccount+"-probe")
	return err == nil || err == keyring.ErrNotFound
}

// Get returns the cached token, or nil when none is cached.
func (c *TokenCache) Get() (*oauth2.Token, error) {
	raw, err := c.backend.read()
	if err != nil || raw == nil {
		return nil, err
	}

	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, armyerrors.NewTrackerErrorWithCause("TokenCache.Get", "corrupt cached token", err)
	}
	return &oauth2.Token{AccessToken: st.AccessToken, TokenType: st.TokenType}, nil
}

// Set caches the token, replacing any previous one.
func (c *TokenCache) Set(token *oauth2.Token) error {
	raw, err := json.Marshal(storedToken{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
	})
	if err != nil {
		return armyerrors.NewTrackerErrorWithCause("TokenCache.Set", "cannot serialize token", err)
	}
	return c.backend.write(raw)
}

// Clear removes the cached token. Clearing an empty cache is a no-op.
func (c *TokenCache) Clear() error {
	return c.backend.remove()
}

// keyringBackend stores the token in the OS keychain (macOS keychain, Linux
// secret service, Windows credential manager).
type keyringBackend struct{}

func (keyringBackend) read() ([]byte, error) {
	data, err := keyring.Get(keyringService, keyringAccount)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, nil
		}
		return nil, armyerrors.NewTrackerErrorWithCause("TokenCache.Get", "keychain read failed", err)
	}
	return []byte(data), nil
}

func (keyringBackend) write(raw []byte) error {
	if err := keyring.Set(keyringService, keyringAccount, string(raw)); err != nil {
		return armyerrors.NewTrackerErrorWithCause("TokenCache.Set", "keychain write failed", err)
	}
	return nil
}

func (keyringBackend) remove() error {
	if err := keyring.Delete(keyringService, keyringAccount); err != nil && err != keyring.ErrNotFound {
		return armyerrors.NewTrackerErrorWithCause("TokenCache.Clear", "keychain delete failed", err)
	}
	return nil
}

// fileBackend stores the token in a restricted-permission file.
type fileBackend struct {
	path string
}

func (f fileBackend) read() ([]byte, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, armyerrors.NewTrackerErrorWithCause("TokenCache.Get", "cannot read token file", err)
	}
	return raw, nil
}

func (f fileBackend) write(raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return armyerrors.NewTrackerErrorWithCause("TokenCache.Set", "cannot create config directory", err)
	}
	if err := os.WriteFile(f.path, raw, 0o600); err != nil {
		return armyerrors.NewTrackerErrorWithCause("TokenCache.Set", "cannot write token file", err)
	}
	return nil
}

func (f fileBackend) remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return armyerrors.NewTrackerErrorWithCause("TokenCache.Clear", "cannot remove token file", err)
	}
	return nil
}

func tokenFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "ai-army", tokenFileName)
}
