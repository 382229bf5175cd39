package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go-dine-api/tokenstore"
)

const (
	HeaderAPIKey        = "X-API-KEY"
	HeaderAuthorization = "Authorization"
)

// IsAuthExempt reports whether a request to path must go out without a bearer
// token. Any path containing "auth" is exempt unless it also contains
// "auth/user". The rule is a plain substring match: "/authors/" is exempt too,
// and endpoint naming on the server relies on exactly this behavior.
// Exempt requests also lose any Authorization header the caller set.
func IsAuthExempt(path string) bool {
	return strings.Contains(path, "auth") && !strings.Contains(path, "auth/user")
}

// authorize sets the credential headers on an outgoing request. Exempt paths
// never carry Authorization, even one the caller set.
func (t *Transport) authorize(req *http.Request, token string) {
	req.Header.Set(HeaderAPIKey, t.apiKey)
	if IsAuthExempt(req.URL.Path) {
		req.Header.Del(HeaderAuthorization)
		return
	}
	if token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+token)
	}
}

// accessToken reads the current access token. A missing or unreadable token
// yields "", so the request goes out without Authorization and the server's
// 401 drives the refresh path.
func (t *Transport) accessToken(ctx context.Context) string {
	token, err := t.store.Get(ctx, tokenstore.KeyAccessToken)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			t.log.WithError(err).Warn("Failed to read access token")
		}
		return ""
	}
	return token
}
