// Package auth manages the Codex/ChatGPT OAuth credential file: loading
// auth.json, answering which bearer token a request should carry, and
// refreshing expired access tokens against the OAuth endpoint.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Auth modes stored in auth.json.
const (
	ModeChatGPT = "chatgpt"
	ModeAPIKey  = "api_key"
)

var (
	refreshURL      = "https://auth.openai.com/oauth/token"
	refreshClientID = "app_EMoamEEZ73f0CkXaXp7hrann"
	refreshScope    = "openid profile email"
)

var (
	ErrNoToken            = errors.New("no authorization token in auth.json")
	ErrRefreshUnavailable = errors.New("token refresh unavailable for current auth state")
)

// File mirrors the on-disk auth.json document.
type File struct {
	AuthMode string `json:"auth_mode,omitempty"`
	APIKey   string `json:"OPENAI_API_KEY,omitempty"`
	Tokens   Tokens `json:"tokens,omitempty"`
}

// Tokens holds the OAuth token material for ChatGPT-mode auth.
type Tokens struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	AccountID    string    `json:"account_id,omitempty"`
	IDToken      IDTokenV1 `json:"id_token,omitempty"`
}

// IDTokenV1 tolerates both historical encodings of the id_token field: a
// bare JWT string, or an object with raw_jwt and chatgpt_account_id.
type IDTokenV1 struct {
	RawJWT           string `json:"raw_jwt,omitempty"`
	ChatGPTAccountID string `json:"chatgpt_account_id,omitempty"`
}

func (t *IDTokenV1) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		t.RawJWT = raw
		return nil
	}
	var obj struct {
		RawJWT           string `json:"raw_jwt"`
		ChatGPTAccountID string `json:"chatgpt_account_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.RawJWT = obj.RawJWT
	t.ChatGPTAccountID = obj.ChatGPTAccountID
	return nil
}

// token returns the bearer token the file's auth mode selects.
func (f File) token() (string, error) {
	switch f.AuthMode {
	case ModeAPIKey:
		if f.APIKey == "" {
			return "", ErrNoToken
		}
		return f.APIKey, nil
	case "", ModeChatGPT:
		if f.Tokens.AccessToken == "" {
			return "", ErrNoToken
		}
		return f.Tokens.AccessToken, nil
	default:
		// Unknown mode: take whatever credential is present.
		if f.Tokens.AccessToken != "" {
			return f.Tokens.AccessToken, nil
		}
		if f.APIKey != "" {
			return f.APIKey, nil
		}
		return "", ErrNoToken
	}
}

func (f File) accountID() string {
	if f.Tokens.AccountID != "" {
		return f.Tokens.AccountID
	}
	return f.Tokens.IDToken.ChatGPTAccountID
}

func (f File) refreshable() bool {
	return f.AuthMode == ModeChatGPT && f.Tokens.RefreshToken != ""
}

// Store is a mutex-guarded view over one auth.json file.
type Store struct {
	path string
	mu   sync.Mutex
	File File
}

// RefreshOptions controls a Refresh call. AllowNetwork must be set
// explicitly; callers in sandboxed contexts pass false and get
// ErrRefreshUnavailable instead of a surprise network request.
type RefreshOptions struct {
	AllowNetwork bool
	HTTPClient   *http.Client
}

// SetRefreshConfig overrides the OAuth refresh endpoint parameters. Empty
// arguments leave the corresponding value unchanged.
func SetRefreshConfig(url, clientID, scope string) {
	if v := strings.TrimSpace(url); v != "" {
		refreshURL = v
	}
	if v := strings.TrimSpace(clientID); v != "" {
		refreshClientID = v
	}
	if v := strings.TrimSpace(scope); v != "" {
		refreshScope = v
	}
}

// DefaultPath returns the auth.json location: $CODEX_HOME/auth.json when
// set, else ~/.codex/auth.json.
func DefaultPath() (string, error) {
	if codexHome := os.Getenv("CODEX_HOME"); codexHome != "" {
		return filepath.Join(codexHome, "auth.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".codex", "auth.json"), nil
}

// Load reads and parses an auth.json file. A missing auth_mode defaults to
// ChatGPT, matching what the Codex CLI writes.
func Load(path string) (*Store, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read auth file: %w", err)
	}
	var f File
	if err := json.Unmarshal(buf, &f); err != nil {
		return nil, fmt.Errorf("parse auth file: %w", err)
	}
	if f.AuthMode == "" {
		f.AuthMode = ModeChatGPT
	}
	return &Store{path: path, File: f}, nil
}

// Path returns the file path this store was loaded from.
func (s *Store) Path() string { return s.path }

// AuthorizationToken returns the bearer token for the active auth mode.
func (s *Store) AuthorizationToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.File.token()
}

// AccountID returns the ChatGPT account id, from the tokens block or the
// decoded id_token.
func (s *Store) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.File.accountID()
}

// IsChatGPT reports whether the store holds ChatGPT-mode credentials.
func (s *Store) IsChatGPT() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.File.AuthMode == ModeChatGPT
}

// RefreshToken returns the stored refresh token, if any.
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.File.Tokens.RefreshToken
}

// CanRefresh reports whether a Refresh call could succeed.
func (s *Store) CanRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.File.refreshable()
}

// Save writes the current state back to disk with 0600 permissions.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	out, err := json.MarshalIndent(s.File, "", "  ")
	if err != nil {
		return fmt.Errorf("encode auth file: %w", err)
	}
	out = append(out, '\n')
	if err := os.WriteFile(s.path, out, 0o600); err != nil {
		return fmt.Errorf("write auth file: %w", err)
	}
	return nil
}

// Refresh exchanges the refresh token for a new access token and persists
// the result. The store lock is not held across the HTTP round trip.
func (s *Store) Refresh(ctx context.Context, opts RefreshOptions) error {
	if !opts.AllowNetwork {
		return fmt.Errorf("refresh blocked: %w", ErrRefreshUnavailable)
	}

	s.mu.Lock()
	if !s.File.refreshable() {
		s.mu.Unlock()
		return ErrRefreshUnavailable
	}
	refreshToken := s.File.Tokens.RefreshToken
	s.mu.Unlock()

	grant, err := requestRefresh(ctx, opts.HTTPClient, refreshToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.File.Tokens.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		s.File.Tokens.RefreshToken = grant.RefreshToken
	}
	if grant.IDToken != "" {
		s.File.Tokens.IDToken.RawJWT = grant.IDToken
	}
	return s.saveLocked()
}

type refreshGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Error        string `json:"error"`
}

func requestRefresh(ctx context.Context, hc *http.Client, refreshToken string) (*refreshGrant, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     refreshClientID,
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"scope":         refreshScope,
	})
	if err != nil {
		return nil, fmt.Errorf("encode refresh payload: %w", err)
	}

	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	var grant refreshGrant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(grant.Error)
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("refresh rejected: %s", detail)
	}
	if grant.AccessToken == "" {
		return nil, errors.New("refresh response missing access_token")
	}
	return &grant, nil
}
