package googleauth

import (
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"
)

// sequenceSource hands out tokens from a fixed list, sticking on the last.
type sequenceSource struct {
	tokens []*oauth2.Token
	i      int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	t := s.tokens[s.i]
	if s.i < len(s.tokens)-1 {
		s.i++
	}
	return t, nil
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("refresh failed")
}

func TestPersistingSourceSavesRefreshedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	initial := &oauth2.Token{AccessToken: "old", RefreshToken: "r1"}
	refreshed := &oauth2.Token{AccessToken: "new", RefreshToken: "r1"}

	src := &persistingSource{
		path: path,
		src:  &sequenceSource{tokens: []*oauth2.Token{initial, refreshed}},
		last: initial.AccessToken,
	}

	// First call returns the cached token; nothing new to persist.
	if _, err := src.Token(); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if _, err := loadToken(path); err == nil {
		t.Fatal("token file written before any refresh")
	}

	// Second call carries a refreshed access token and must hit disk.
	tok, err := src.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "new" {
		t.Fatalf("AccessToken = %q, want new", tok.AccessToken)
	}

	saved, err := loadToken(path)
	if err != nil {
		t.Fatalf("loadToken() after refresh: %v", err)
	}
	if saved.AccessToken != "new" || saved.RefreshToken != "r1" {
		t.Errorf("persisted token = %+v", saved)
	}

	// Same token again does not rewrite.
	if _, err := src.Token(); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
}

func TestPersistingSourcePropagatesRefreshError(t *testing.T) {
	src := &persistingSource{
		path: filepath.Join(t.TempDir(), "token.json"),
		src:  failingSource{},
	}
	if _, err := src.Token(); err == nil {
		t.Error("expected refresh error to propagate")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
	}
	if err := saveToken(path, want); err != nil {
		t.Fatalf("saveToken() error = %v", err)
	}

	got, err := loadToken(path)
	if err != nil {
		t.Fatalf("loadToken() error = %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Errorf("loaded token = %+v, want %+v", got, want)
	}
}
