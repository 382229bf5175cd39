package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-dine-api/logger"
	"go-dine-api/tokenstore"

	"github.com/sirupsen/logrus"
)

// RefreshPath is appended to the auth service URL to build the refresh endpoint.
const RefreshPath = "/auth/token/refresh/"

const defaultRefreshTimeout = 15 * time.Second

// LogoutFunc is called after a failed refresh has cleared the stored tokens.
// It is where an application navigates back to its unauthenticated entry
// point. reason is nil for a logout the user asked for.
type LogoutFunc func(ctx context.Context, reason error)

type TransportConfig struct {
	// Base performs the actual requests. Defaults to http.DefaultTransport.
	Base  http.RoundTripper
	Store tokenstore.Store
	// APIKey is sent as X-API-KEY on every request, even when empty.
	APIKey string
	// RefreshURL is the absolute URL of the token refresh endpoint.
	RefreshURL     string
	RefreshTimeout time.Duration
	OnLogout       LogoutFunc
	Logger         logrus.FieldLogger
}

// Transport attaches credentials to requests and transparently refreshes an
// expired access token. See the package documentation for the protocol.
type Transport struct {
	base           http.RoundTripper
	store          tokenstore.Store
	apiKey         string
	refreshURL     string
	refreshTimeout time.Duration
	onLogout       LogoutFunc
	log            logrus.FieldLogger

	coord coordinator
}

func NewTransport(cfg TransportConfig) *Transport {
	t := &Transport{
		base:           cfg.Base,
		store:          cfg.Store,
		apiKey:         cfg.APIKey,
		refreshURL:     cfg.RefreshURL,
		refreshTimeout: cfg.RefreshTimeout,
		onLogout:       cfg.OnLogout,
		log:            cfg.Logger,
	}
	if t.base == nil {
		t.base = http.DefaultTransport
	}
	if t.refreshTimeout <= 0 {
		t.refreshTimeout = defaultRefreshTimeout
	}
	if t.log == nil {
		t.log = logger.Log
	}
	return t
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	gen := t.coord.current()

	out := req.Clone(ctx)
	t.authorize(out, t.accessToken(ctx))

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if IsAuthExempt(req.URL.Path) || !replayable(req) {
		return resp, nil
	}
	return t.recover(req, resp, gen)
}

// recover runs the 401 path for a request sent at generation sentGen.
func (t *Transport) recover(req *http.Request, resp *http.Response, sentGen uint64) (*http.Response, error) {
	ctx := req.Context()
	log := t.log.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
	})

	d, p := t.coord.claim(sentGen)
	switch d {
	case decideWait:
		log.Debug("Refresh in flight, queueing request")
		return t.await(ctx, p, req, resp)

	case decideReplay:
		token := t.accessToken(ctx)
		if token == "" {
			return resp, nil
		}
		drain(resp)
		return t.replay(req, token, nil)
	}

	log.Info("Access token rejected, refreshing")
	token, err := t.refresh(ctx)
	queue := t.coord.settle(err == nil)
	if err != nil {
		t.coord.abandon(queue)
		log.WithError(err).WithField("queued", len(queue)).Warn("Token refresh failed")
		t.logout(ctx, err)
		return resp, nil
	}

	log.WithField("queued", len(queue)).Info("Token refreshed")
	t.coord.publish(queue, token)

	drain(resp)
	return t.replay(req, token, nil)
}

// await parks a request until the in-flight refresh resolves.
func (t *Transport) await(ctx context.Context, p *pending, req *http.Request, resp *http.Response) (*http.Response, error) {
	select {
	case token, ok := <-p.token:
		if !ok {
			return resp, nil
		}
		drain(resp)
		return t.replay(req, token, p.dispatched)

	case <-ctx.Done():
		close(p.abandoned)
		drain(resp)
		return nil, ctx.Err()
	}
}

// replay resends req once with token. The replay goes straight to the base
// transport, so a second 401 is returned to the caller as-is. dispatched, when
// not nil, is closed as the replay is handed to the base transport.
func (t *Transport) replay(req *http.Request, token string, dispatched chan struct{}) (*http.Response, error) {
	signal := func() {
		if dispatched != nil {
			close(dispatched)
		}
	}

	out, err := rewind(req)
	if err != nil {
		signal()
		return nil, err
	}
	t.authorize(out, token)

	log := t.log.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
	})
	if req.Method == http.MethodPost || req.Method == http.MethodPatch {
		log.Warn("Replaying non-idempotent request after token refresh")
	} else {
		log.Debug("Replaying request after token refresh")
	}

	signal()
	return t.base.RoundTrip(out)
}

// refresh exchanges the stored refresh token for a new access token and
// persists it. It runs detached from the caller's cancellation, bounded by
// the refresh timeout.
func (t *Transport) refresh(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.refreshTimeout)
	defer cancel()

	refreshToken, err := t.store.Get(ctx, tokenstore.KeyRefreshToken)
	if errors.Is(err, tokenstore.ErrNotFound) || (err == nil && refreshToken == "") {
		return "", ErrNoRefreshToken
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading refresh token: %w", ErrRefreshFailed, err)
	}

	body, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.refreshURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIKey, t.apiKey)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: refresh endpoint returned %d", ErrRefreshFailed, resp.StatusCode)
	}

	var payload refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrRefreshFailed, err)
	}
	if payload.Access == "" {
		return "", fmt.Errorf("%w: response carries no access token", ErrRefreshFailed)
	}

	if err := t.store.Set(ctx, tokenstore.KeyAccessToken, payload.Access); err != nil {
		return "", fmt.Errorf("%w: persisting access token: %w", ErrRefreshFailed, err)
	}
	if payload.Refresh != "" {
		if err := t.store.Set(ctx, tokenstore.KeyRefreshToken, payload.Refresh); err != nil {
			return "", fmt.Errorf("%w: persisting refresh token: %w", ErrRefreshFailed, err)
		}
	}
	return payload.Access, nil
}

// Logout clears both tokens and invokes the logout handler.
func (t *Transport) Logout(ctx context.Context, reason error) error {
	return t.logout(ctx, reason)
}

func (t *Transport) logout(ctx context.Context, reason error) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, key := range []string{tokenstore.KeyAccessToken, tokenstore.KeyRefreshToken} {
		if err := t.store.Remove(ctx, key); err != nil {
			t.log.WithError(err).WithField("key", key).Error("Failed to remove token")
			errs = append(errs, err)
		}
	}

	entry := t.log.WithField("forced", reason != nil)
	if reason != nil {
		entry = entry.WithError(reason)
	}
	entry.Info("Session logged out")

	if t.onLogout != nil {
		t.onLogout(ctx, reason)
	}
	return errors.Join(errs...)
}

// replayable reports whether req's body can be sent a second time.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func rewind(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		out.Body = body
	}
	return out, nil
}

// drain releases a response that will not be returned to the caller.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}
