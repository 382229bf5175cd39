package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-dine-api/config"
	"go-dine-api/tokenstore"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	BaseURL string
	// AuthURL hosts the refresh endpoint. Defaults to BaseURL.
	AuthURL        string
	APIKey         string
	Timeout        time.Duration
	RefreshTimeout time.Duration
}

// ConfigFrom builds a client Config from the application configuration.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		BaseURL:        cfg.Client.BaseURL,
		AuthURL:        cfg.Client.AuthURL,
		APIKey:         cfg.API.Key,
		Timeout:        cfg.Client.Timeout,
		RefreshTimeout: cfg.Client.RefreshTimeout,
	}
}

type Option func(*options)

type options struct {
	base     http.RoundTripper
	log      logrus.FieldLogger
	onLogout LogoutFunc
}

// WithBaseTransport sets the transport that performs the actual requests.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithLogoutHandler registers fn to run after the session has been cleared.
func WithLogoutHandler(fn LogoutFunc) Option {
	return func(o *options) { o.onLogout = fn }
}

// Client sends authenticated requests to the dine API.
type Client struct {
	baseURL   *url.URL
	store     tokenstore.Store
	transport *Transport
	http      *http.Client
}

func New(cfg Config, store tokenstore.Store, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("apiclient: token store is required")
	}

	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = cfg.BaseURL
	}
	if _, err := parseBaseURL(authURL); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := NewTransport(TransportConfig{
		Base:           o.base,
		Store:          store,
		APIKey:         cfg.APIKey,
		RefreshURL:     strings.TrimRight(authURL, "/") + RefreshPath,
		RefreshTimeout: cfg.RefreshTimeout,
		OnLogout:       o.onLogout,
		Logger:         o.log,
	})

	return &Client{
		baseURL:   base,
		store:     store,
		transport: transport,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("apiclient: URL %q must be absolute", raw)
	}
	return u, nil
}

// HTTPClient exposes the underlying authenticated *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// NewRequest builds a request for path relative to the base URL. A non-nil
// body is encoded as JSON; the request body can be rewound for replays.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	base := *c.baseURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	target := base.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends req through the authenticated transport.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// DoJSON sends a request and decodes a 2xx JSON response into out, which may
// be nil. Any other status is returned as *APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Detail
		}
	}
	return apiErr
}

// SetSession stores a freshly issued token pair, typically after login.
func (c *Client) SetSession(ctx context.Context, access, refresh string) error {
	if err := c.store.Set(ctx, tokenstore.KeyAccessToken, access); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	if err := c.store.Set(ctx, tokenstore.KeyRefreshToken, refresh); err != nil {
		return fmt.Errorf("storing refresh token: %w", err)
	}
	return nil
}

// RefreshToken returns the stored refresh token, or "" when there is none.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	token, err := c.store.Get(ctx, tokenstore.KeyRefreshToken)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return "", nil
	}
	return token, err
}

// Logout clears the local session and runs the logout handler with a nil
// reason.
func (c *Client) Logout(ctx context.Context) error {
	return c.transport.Logout(ctx, nil)
}
