package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"go-dine-api/tokenstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// testAPI is a minimal dine API served over HTTP.
type testAPI struct {
	mu           sync.Mutex
	access       string
	refresh      string
	refreshCalls atomic.Int32
}

func (a *testAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		a.refreshCalls.Add(1)
		var body struct {
			Refresh string `json:"refresh"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		a.mu.Lock()
		defer a.mu.Unlock()
		if body.Refresh != a.refresh {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "message": "invalid refresh token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": a.access})
	})

	mux.HandleFunc("/api/order/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderAPIKey) != "k" {
			writeJSON(w, http.StatusForbidden, map[string]any{"code": 403, "message": "invalid API key"})
			return
		}
		a.mu.Lock()
		ok := r.Header.Get(HeaderAuthorization) == "Bearer "+a.access
		a.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "message": "token expired"})
			return
		}

		switch r.URL.Path {
		case "/api/order/":
			if r.Method == http.MethodPost {
				var in map[string]any
				_ = json.NewDecoder(r.Body).Decode(&in)
				writeJSON(w, http.StatusCreated, map[string]any{"id": 1, "items": in["items"]})
				return
			}
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 1}, {"id": 2}})
		case "/api/order/1/":
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "message": "order not found"})
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, api *testAPI, access, refresh string, opts ...Option) (*Client, tokenstore.Store) {
	t.Helper()

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	store := tokenstore.NewMemoryStore()
	client, err := New(Config{BaseURL: srv.URL + "/api", APIKey: "k"}, store, opts...)
	require.NoError(t, err)

	if access != "" || refresh != "" {
		require.NoError(t, client.SetSession(context.Background(), access, refresh))
	}
	return client, store
}

func TestNew_Validation(t *testing.T) {
	store := tokenstore.NewMemoryStore()

	_, err := New(Config{BaseURL: "http://localhost"}, nil)
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "/relative"}, store)
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "http://localhost", AuthURL: "::bad"}, store)
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "http://localhost/api/"}, store)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/api/"+RefreshPath[1:], c.transport.refreshURL)
	assert.Equal(t, defaultTimeout, c.HTTPClient().Timeout)
}

func TestClient_NewRequest(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8080/api"}, tokenstore.NewMemoryStore())
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodPost, "/order/", map[string]string{"a": "b"})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api/order/", req.URL.String())
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	require.NotNil(t, req.GetBody, "JSON bodies must be replayable")

	req, err = c.NewRequest(context.Background(), http.MethodGet, "order/3/", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/order/3/", req.URL.String())
	assert.Empty(t, req.Header.Get("Content-Type"))
}

func TestClient_DoJSON(t *testing.T) {
	api := &testAPI{access: "a1", refresh: "r1"}
	client, _ := newTestClient(t, api, "a1", "r1")
	ctx := context.Background()

	var orders []map[string]any
	require.NoError(t, client.DoJSON(ctx, http.MethodGet, "/order/", nil, &orders))
	assert.Len(t, orders, 2)

	var created map[string]any
	err := client.DoJSON(ctx, http.MethodPost, "/order/", map[string]any{"items": []string{"ramen"}}, &created)
	require.NoError(t, err)
	assert.Equal(t, []any{"ramen"}, created["items"])

	require.NoError(t, client.DoJSON(ctx, http.MethodDelete, "/order/1/", nil, &created))

	err = client.DoJSON(ctx, http.MethodGet, "/order/99/", nil, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "order not found", apiErr.Message)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestClient_RefreshesExpiredSession(t *testing.T) {
	api := &testAPI{access: "a2", refresh: "r1"}
	client, store := newTestClient(t, api, "a1", "r1")

	var orders []map[string]any
	require.NoError(t, client.DoJSON(context.Background(), http.MethodGet, "/order/", nil, &orders))

	assert.Len(t, orders, 2)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
	access, err := store.Get(context.Background(), tokenstore.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a2", access)
}

func TestClient_ConcurrentRequestsRefreshOnce(t *testing.T) {
	const n = 20

	api := &testAPI{access: "a2", refresh: "r1"}
	client, _ := newTestClient(t, api, "a1", "r1")

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			var orders []map[string]any
			return client.DoJSON(ctx, http.MethodGet, "/order/", nil, &orders)
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestClient_RejectedRefreshLogsOut(t *testing.T) {
	api := &testAPI{access: "a2", refresh: "r-current"}

	var reasons []error
	var mu sync.Mutex
	client, store := newTestClient(t, api, "a1", "r-stale", WithLogoutHandler(func(_ context.Context, reason error) {
		mu.Lock()
		defer mu.Unlock()
		reasons = append(reasons, reason)
	}))

	err := client.DoJSON(context.Background(), http.MethodGet, "/order/", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	mu.Lock()
	require.Len(t, reasons, 1)
	assert.ErrorIs(t, reasons[0], ErrRefreshFailed)
	mu.Unlock()

	_, err = store.Get(context.Background(), tokenstore.KeyRefreshToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)

	refresh, err := client.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refresh)
}

func TestClient_Logout(t *testing.T) {
	api := &testAPI{access: "a1", refresh: "r1"}

	var called atomic.Int32
	client, store := newTestClient(t, api, "a1", "r1", WithLogoutHandler(func(_ context.Context, reason error) {
		assert.NoError(t, reason)
		called.Add(1)
	}))

	refresh, err := client.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", refresh)

	require.NoError(t, client.Logout(context.Background()))
	assert.EqualValues(t, 1, called.Load())

	_, err = store.Get(context.Background(), tokenstore.KeyAccessToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: http.StatusUnauthorized}
	assert.Equal(t, "api error: 401 Unauthorized", err.Error())
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = &APIError{StatusCode: http.StatusForbidden, Message: "admin only"}
	assert.Equal(t, "api error: 403 admin only", err.Error())
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrNotFound)
}
