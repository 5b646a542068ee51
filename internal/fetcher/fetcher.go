// Package fetcher downloads environments.json documents from a config host.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eugenenazirov/envfriend/internal/environment"
)

const (
	// DefaultHost serves environments.json when no host is configured.
	DefaultHost = "https://ui.impact.com"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// ErrUnexpectedStatus is returned for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Fetcher retrieves the environments document of a project.
type Fetcher interface {
	Fetch(ctx context.Context, host, project string) (environment.File, error)
}

// Client fetches documents over HTTP.
type Client struct {
	http        *http.Client
	defaultHost string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithDefaultHost sets the host used when Fetch is called without one.
func WithDefaultHost(host string) Option {
	return func(cl *Client) {
		if host != "" {
			cl.defaultHost = host
		}
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: defaultTimeout},
		defaultHost: DefaultHost,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultHost returns the host used when Fetch receives an empty host.
func (c *Client) DefaultHost() string {
	return c.defaultHost
}

// ConfigURL returns <host>/<project>/environments.json.
func ConfigURL(host, project string) string {
	return strings.TrimRight(host, "/") + "/" + url.PathEscape(project) + "/environments.json"
}

// Fetch downloads and parses the environments document of project.
func (c *Client) Fetch(ctx context.Context, host, project string) (environment.File, error) {
	if host == "" {
		host = c.defaultHost
	}
	target := ConfigURL(host, project)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return environment.File{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return environment.File{}, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return environment.File{}, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return environment.File{}, fmt.Errorf("reading %s: %w", target, err)
	}

	f, err := environment.ParseFile(body)
	if err != nil {
		return environment.File{}, fmt.Errorf("parsing %s: %w", target, err)
	}
	return f, nil
}
