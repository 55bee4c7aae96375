// Package github fetches the repository and user records the seed
// application displays, and binds them into view models that degrade
// to placeholders when the API is unavailable.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/version"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.github.com"

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// Repo is the subset of a repository record the views use.
type Repo struct {
	FullName        string `json:"full_name"`
	HTMLURL         string `json:"html_url"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
}

// User is the subset of a user record the views use.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// API is what the views need from a client.
type API interface {
	GetRepo(ctx context.Context, fullName string) (*Repo, error)
	GetUser(ctx context.Context, username string) (*User, error)
}

// Client calls the API. Successful responses are cached for the life
// of the client, and concurrent requests for the same path share one
// round trip.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  logging.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string][]byte
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken authenticates requests, which raises the rate limit.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for DefaultBaseURL.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.NewNopLogger(),
		cache:   make(map[string][]byte),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.WithComponent("github")
	return c
}

// GetRepo fetches GET /repos/{owner}/{name}.
func (c *Client) GetRepo(ctx context.Context, fullName string) (*Repo, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("repository %q is not in owner/name form", fullName), nil)
	}
	var repo Repo
	if err := c.get(ctx, "/repos/"+owner+"/"+name, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetUser fetches GET /users/{username}.
func (c *Client) GetUser(ctx context.Context, username string) (*User, error) {
	if username == "" || strings.Contains(username, "/") {
		return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid username %q", username), nil)
	}
	var user User
	if err := c.get(ctx, "/users/"+username, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Cached reports whether path has a cached response.
func (c *Client) Cached(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cache[path]
	return ok
}

func (c *Client) get(ctx context.Context, path string, v interface{}) error {
	if body, ok := c.lookup(path); ok {
		return decode(path, body, v)
	}

	result, err, _ := c.group.Do(path, func() (interface{}, error) {
		// A flight that finished between the lookup above and Do
		// already filled the cache.
		if body, ok := c.lookup(path); ok {
			return body, nil
		}
		body, err := c.fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[path] = body
		c.mu.Unlock()
		return body, nil
	})
	if err != nil {
		return err
	}
	return decode(path, result.([]byte), v)
}

func (c *Client) lookup(path string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.cache[path]
	return body, ok
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, gerrors.NewNetworkError(gerrors.ErrCodeRequestFailed, "creating request", err).WithContext("url", url)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "ginger/"+version.GetShortVersion())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug(ctx, "Request", "method", http.MethodGet, "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, gerrors.NewNetworkError(gerrors.ErrCodeRequestFailed, "request failed", err).WithContext("url", url)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, gerrors.NewNetworkError(gerrors.ErrCodeRequestFailed, "reading response", err).WithContext("url", url)
	}

	if resp.StatusCode != http.StatusOK {
		// Error payloads carry a message field.
		var payload struct {
			Message string `json:"message"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
			msg = payload.Message
		}
		return nil, gerrors.NewNetworkError(gerrors.ErrCodeBadResponse, msg, nil).
			WithContext("url", url).
			WithContext("status", resp.StatusCode)
	}
	return body, nil
}

func decode(path string, body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return gerrors.NewNetworkError(gerrors.ErrCodeBadResponse, "malformed response", err).WithContext("path", path)
	}
	return nil
}
