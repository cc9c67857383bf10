// Package googleauth provides the shared OAuth2 plumbing for every Google
// collaborator. Gmail, Sheets and Calendar all authenticate through one
// credentials file; each keeps its own token cache on disk, and refreshed
// tokens are written back so the interactive flow runs once, not once per
// token lifetime.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Client returns an authenticated HTTP client for the requested scopes.
// It loads app credentials from credentialsPath, reuses a cached token from
// tokenPath when one exists, and otherwise runs an interactive authorization
// flow on the terminal.
func Client(ctx context.Context, credentialsPath, tokenPath string, scopes ...string) (*http.Client, error) {
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(creds, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	token, err := loadToken(tokenPath)
	if err != nil {
		token, err = authorize(ctx, cfg, tokenPath)
		if err != nil {
			return nil, fmt.Errorf("authorize: %w", err)
		}
	}

	src := &persistingSource{
		path: tokenPath,
		src:  cfg.TokenSource(ctx, token),
		last: token.AccessToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

// persistingSource wraps a refreshing TokenSource and writes each newly
// minted token back to disk, so the next process start picks up the current
// refresh state instead of an expired cache.
type persistingSource struct {
	path string
	src  oauth2.TokenSource

	mu   sync.Mutex
	last string // access token already persisted
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last {
		p.last = token.AccessToken
		if err := saveToken(p.path, token); err != nil {
			// The in-memory token still works; only the cache write failed.
			slog.Warn("Failed to persist refreshed token", "path", p.path, "error", err)
		}
	}
	return token, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}

	return &token, nil
}

func authorize(ctx context.Context, cfg *oauth2.Config, tokenPath string) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open this URL in your browser:\n%s\n\n", authURL)
	fmt.Print("Enter authorization code: ")

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("read auth code: %w", err)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	if err := saveToken(tokenPath, token); err != nil {
		slog.Warn("Failed to save token", "path", tokenPath, "error", err)
	}

	return token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
