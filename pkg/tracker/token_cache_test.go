package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

func fileCache(t *testing.T) *TokenCache {
	t.Helper()
	return &TokenCache{backend: fileBackend{path: filepath.Join(t.TempDir(), tokenFileName)}}
}

func TestTokenCache_RoundTrip(t *testing.T) {
	cache := fileCache(t)

	token := &oauth2.Token{AccessToken: "gho_testtoken", TokenType: "bearer"}
	if err := cache.Set(token); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := cache.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.AccessToken != token.AccessToken {
		t.Errorf("Get = %+v, want access token %q", got, token.AccessToken)
	}
	if got.TokenType != "bearer" {
		t.Errorf("TokenType = %q", got.TokenType)
	}
}

func TestTokenCache_GetMissing(t *testing.T) {
	got, err := fileCache(t).Get()
	if err != nil {
		t.Fatalf("Get on empty cache: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil token, got %+v", got)
	}
}

func TestTokenCache_Clear(t *testing.T) {
	cache := fileCache(t)

	if err := cache.Set(&oauth2.Token{AccessToken: "gho_testtoken"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear on empty cache should be idempotent: %v", err)
	}

	got, err := cache.Get()
	if err != nil {
		t.Fatalf("Get after clear: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil token after clear, got %+v", got)
	}
}

func TestTokenCache_CorruptEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), tokenFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := (&TokenCache{backend: fileBackend{path: path}}).Get()
	if !armyerrors.IsTrackerError(err) {
		t.Fatalf("expected TrackerError on corrupt token, got %v", err)
	}
}
