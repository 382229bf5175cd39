package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go-dine-api/tokenstore"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

/*************
 * Fake backend
 *************/

type recorded struct {
	method string
	path   string
	header http.Header
	body   string
}

// fakeBackend is an http.RoundTripper standing in for the dine API. Protected
// endpoints accept exactly one bearer token, which the refresh endpoint
// rotates to nextAccess.
type fakeBackend struct {
	mu    sync.Mutex
	valid string
	calls []recorded

	nextAccess    string
	rotateRefresh string
	refreshStatus int
	refreshErr    error
	// refreshGate, when set, holds every refresh call until it is closed.
	refreshGate chan struct{}
	// reject lists paths that answer 401 whatever the token.
	reject map[string]bool
	// fail lists paths whose round trip returns a network error.
	fail map[string]bool
	// onRequest runs before a non-refresh request is answered.
	onRequest func(req *http.Request)

	refreshCalls atomic.Int32
}

func newFakeBackend(valid, nextAccess string) *fakeBackend {
	return &fakeBackend{
		valid:      valid,
		nextAccess: nextAccess,
		reject:     map[string]bool{},
		fail:       map[string]bool{},
	}
}

func (b *fakeBackend) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	var body string
	if req.Body != nil {
		buf, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		body = string(buf)
	}

	b.mu.Lock()
	b.calls = append(b.calls, recorded{
		method: req.Method,
		path:   req.URL.Path,
		header: req.Header.Clone(),
		body:   body,
	})
	b.mu.Unlock()

	if req.URL.Path == RefreshPath {
		return b.serveRefresh(req)
	}

	if b.onRequest != nil {
		b.onRequest(req)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.fail[req.URL.Path]:
		return nil, fmt.Errorf("dial tcp: connection refused")
	case b.reject[req.URL.Path]:
		return respond(req, http.StatusUnauthorized, `{"code":401,"message":"invalid token"}`), nil
	case req.URL.Path == "/boom/":
		return respond(req, http.StatusInternalServerError, `{"code":500,"message":"boom"}`), nil
	case IsAuthExempt(req.URL.Path):
		return respond(req, http.StatusOK, `{"status":"ok"}`), nil
	case req.Header.Get(HeaderAuthorization) != "Bearer "+b.valid:
		return respond(req, http.StatusUnauthorized, `{"code":401,"message":"token expired"}`), nil
	}
	return respond(req, http.StatusOK, fmt.Sprintf(`{"path":%q,"body":%q}`, req.URL.Path, body)), nil
}

func (b *fakeBackend) serveRefresh(req *http.Request) (*http.Response, error) {
	b.refreshCalls.Add(1)
	if b.refreshGate != nil {
		<-b.refreshGate
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refreshErr != nil {
		return nil, b.refreshErr
	}
	if b.refreshStatus != 0 && b.refreshStatus != http.StatusOK {
		return respond(req, b.refreshStatus, `{"code":401,"message":"invalid refresh token"}`), nil
	}

	b.valid = b.nextAccess
	payload := fmt.Sprintf(`{"access":%q}`, b.nextAccess)
	if b.rotateRefresh != "" {
		payload = fmt.Sprintf(`{"access":%q,"refresh":%q}`, b.nextAccess, b.rotateRefresh)
	}
	return respond(req, http.StatusOK, payload), nil
}

// callsTo returns the recorded requests for path, in arrival order.
func (b *fakeBackend) callsTo(path string) []recorded {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []recorded
	for _, c := range b.calls {
		if c.path == path {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeBackend) callsWithToken(token string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, c := range b.calls {
		if c.header.Get(HeaderAuthorization) == "Bearer "+token {
			n++
		}
	}
	return n
}

func respond(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

/*************
 * Store and logout helpers
 *************/

// countingStore counts writes on top of a MemoryStore.
type countingStore struct {
	*tokenstore.MemoryStore
	sets atomic.Int32
}

func (s *countingStore) Set(ctx context.Context, key, value string) error {
	s.sets.Add(1)
	return s.MemoryStore.Set(ctx, key, value)
}

func newSession(t *testing.T, access, refresh string) *countingStore {
	t.Helper()
	store := &countingStore{MemoryStore: tokenstore.NewMemoryStore()}
	ctx := context.Background()
	if access != "" {
		require.NoError(t, store.MemoryStore.Set(ctx, tokenstore.KeyAccessToken, access))
	}
	if refresh != "" {
		require.NoError(t, store.MemoryStore.Set(ctx, tokenstore.KeyRefreshToken, refresh))
	}
	return store
}

type logoutRecorder struct {
	mu      sync.Mutex
	reasons []error
}

func (r *logoutRecorder) handle(_ context.Context, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *logoutRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

func (r *logoutRecorder) last() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reasons) == 0 {
		return nil
	}
	return r.reasons[len(r.reasons)-1]
}

type harness struct {
	backend   *fakeBackend
	store     *countingStore
	logouts   *logoutRecorder
	hook      *test.Hook
	transport *Transport
}

func newHarness(t *testing.T, backend *fakeBackend, store *countingStore) *harness {
	t.Helper()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	logouts := &logoutRecorder{}
	tr := NewTransport(TransportConfig{
		Base:       backend,
		Store:      store,
		APIKey:     "test-key",
		RefreshURL: "http://api.test" + RefreshPath,
		OnLogout:   logouts.handle,
		Logger:     log,
	})

	return &harness{
		backend:   backend,
		store:     store,
		logouts:   logouts,
		hook:      hook,
		transport: tr,
	}
}

func (h *harness) get(ctx context.Context, t *testing.T, path string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://api.test"+path, nil)
	require.NoError(t, err)
	return h.transport.RoundTrip(req)
}

// replayedPaths lists the paths of "Replaying" log entries in log order.
func (h *harness) replayedPaths() []string {
	var out []string
	for _, e := range h.hook.AllEntries() {
		if strings.HasPrefix(e.Message, "Replaying") {
			out = append(out, e.Data["path"].(string))
		}
	}
	return out
}

func (h *harness) storedToken(t *testing.T, key string) string {
	t.Helper()
	v, err := h.store.Get(context.Background(), key)
	if err != nil {
		return ""
	}
	return v
}
