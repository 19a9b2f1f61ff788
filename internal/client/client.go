// Package client is the authenticated HTTP client for the CheckAuto
// backend. It attaches the bearer credential, transparently refreshes it
// once on 401/403 and signals unauthorized when the refresh also fails.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TokenStore holds the device credentials. Token persistence is owned by
// the hosting application; the client only reads and updates it.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(token string)
	Clear()
}

// MemoryTokenStore is a mutex-guarded in-memory TokenStore.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewMemoryTokenStore creates a token store seeded with the given tokens.
func NewMemoryTokenStore(access, refresh string) *MemoryTokenStore {
	return &MemoryTokenStore{access: access, refresh: refresh}
}

func (s *MemoryTokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *MemoryTokenStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *MemoryTokenStore) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = token
}

func (s *MemoryTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
}

// StatusError is a non-2xx response from the backend. Its message carries
// the HTTP status so queue bookkeeping can surface it verbatim.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// APIClient talks to the CheckAuto backend.
type APIClient struct {
	baseURL        string
	http           *http.Client
	tokens         TokenStore
	onUnauthorized func()
}

// New creates an API client for the given base URL.
func New(baseURL string, timeout time.Duration, tokens TokenStore) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// OnUnauthorized registers the callback invoked when the credential is
// invalid and cannot be refreshed (the hosting app logs the user out).
func (c *APIClient) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// Do performs one authenticated request. Body may be nil; it must be a
// byte slice (not a stream) so the request can be replayed after a
// credential refresh.
func (c *APIClient) Do(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, body, contentType, c.tokens.AccessToken())
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	refresh := c.tokens.RefreshToken()
	if refresh != "" {
		newAccess, refreshErr := c.refreshAccessToken(ctx, refresh)
		if refreshErr == nil && newAccess != "" {
			resp.Body.Close()
			c.tokens.SetAccessToken(newAccess)
			return c.send(ctx, method, path, body, contentType, newAccess)
		}
		log.Printf("[APIClient] Credential refresh failed: %v", refreshErr)
	}

	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	return resp, nil
}

func (c *APIClient) send(ctx context.Context, method, path string, body []byte, contentType, accessToken string) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return c.http.Do(req)
}

func (c *APIClient) refreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	body, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/refresh/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	var payload struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if payload.Access == "" {
		return "", fmt.Errorf("refresh response carried no access token")
	}
	return payload.Access, nil
}

// checkStatus converts a non-2xx response into a StatusError and drains
// the body either way.
func checkStatus(resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
