package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/custody/internal/model"
)

// Remote is the state store as seen from the client.
type Remote interface {
	FetchAll(ctx context.Context) (*model.Snapshot, error)
	ReplaceAll(ctx context.Context, snap *model.Snapshot) error
}

// tokenIssuer is implemented by remotes that can exchange credentials for a
// bearer token.
type tokenIssuer interface {
	Login(ctx context.Context, role, id, password string) error
	Logout(ctx context.Context) error
}

var (
	_ Remote      = (*HTTPRemote)(nil)
	_ tokenIssuer = (*HTTPRemote)(nil)
)

const (
	defaultBaseURL        = "http://localhost:3000"
	defaultUserAgent      = "custody-client/1.0"
	defaultRequestTimeout = 5 * time.Second
)

// HTTPRemote talks to the state store over its JSON API.
type HTTPRemote struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string

	mu    sync.RWMutex
	token string
}

// NewHTTPRemote builds a remote for baseURL. A zero timeout uses the default.
func NewHTTPRemote(baseURL string, timeout time.Duration) (*HTTPRemote, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPRemote{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
	}, nil
}

// SetToken sets the bearer token sent with every request.
func (c *HTTPRemote) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// FetchAll retrieves the full server snapshot.
func (c *HTTPRemote) FetchAll(ctx context.Context) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/data", nil, &snap); err != nil {
		return nil, err
	}
	snap.Normalize()
	return &snap, nil
}

// ReplaceAll pushes the full snapshot.
func (c *HTTPRemote) ReplaceAll(ctx context.Context, snap *model.Snapshot) error {
	body := *snap
	body.Normalize()
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/sync", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("sync not acknowledged")
	}
	return nil
}

// Login obtains a token and uses it for later requests.
func (c *HTTPRemote) Login(ctx context.Context, role, id, password string) error {
	req := map[string]string{"role": role, "id": id, "password": password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return err
	}
	c.SetToken(resp.Token)
	return nil
}

// Logout revokes the current token, if any, and forgets it.
func (c *HTTPRemote) Logout(ctx context.Context) error {
	c.mu.RLock()
	has := c.token != ""
	c.mu.RUnlock()
	if !has {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

func (c *HTTPRemote) do(ctx context.Context, method, path string, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", model.ErrStorageUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		err := fmt.Errorf("api %s returned status %d: %s", path, resp.StatusCode, e.Error)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
		}
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
