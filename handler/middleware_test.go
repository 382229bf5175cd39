package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go-dine-api/common"
	"go-dine-api/model"
	"go-dine-api/service"

	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAPIKeyMiddleware(t *testing.T) {
	h := APIKeyMiddleware("secret")(okHandler)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusForbidden},
		{"wrong", "guess", http.StatusForbidden},
		{"match", "secret", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/order/", nil)
			if tc.key != "" {
				req.Header.Set(HeaderAPIKey, tc.key)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}

	rr := httptest.NewRecorder()
	APIKeyMiddleware("")(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/order/", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "an empty key disables the check")
}

func TestAuthMiddleware(t *testing.T) {
	auth := new(mockAuthService)
	auth.On("ParseAccessToken", "good").Return(&model.AppClaims{UserID: 4, Role: model.RoleUser}, nil)
	auth.On("ParseAccessToken", "expired").Return(nil, service.ErrInvalidAccessToken)

	var gotID int
	var gotRole model.Role
	h := AuthMiddleware(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotRole, _ = identity(r)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"extra parts", "Bearer a b", http.StatusUnauthorized},
		{"expired", "Bearer expired", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/user/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}

	assert.Equal(t, 4, gotID)
	assert.Equal(t, model.RoleUser, gotRole)
}

func TestAdminMiddleware(t *testing.T) {
	h := AdminMiddleware(okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest(http.MethodPatch, "/order/1/status/", "", 2, model.RoleUser))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest(http.MethodPatch, "/order/1/status/", "", 1, model.RoleAdmin))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest(http.MethodPatch, "/order/1/status/", "", 0, ""))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequestLogger(t *testing.T) {
	h := RequestLogger(okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rr.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "trace-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "trace-123", rr.Header().Get(HeaderRequestID))
}

func TestErrorHandlingMiddleware_RecoversPanic(t *testing.T) {
	rr := serve(func(w http.ResponseWriter, r *http.Request) *common.AppError {
		panic("boom")
	}, httptest.NewRequest(http.MethodGet, "/order/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"code":500,"message":"Internal server error"}`, rr.Body.String())
}

func TestHealthCheck(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"API is healthy and running"}`, rr.Body.String())
}
