package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Email string `json:"email" validate:"required,email"`
	Count int    `json:"count" validate:"min=1"`
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"email":"a@b.co","count":2}`, ""},
		{"malformed", `{"email":`, "Invalid request body"},
		{"unknown field", `{"email":"a@b.co","count":1,"extra":true}`, "Invalid request body"},
		{"invalid email", `{"email":"nope","count":1}`, "payload.Email failed on email"},
		{"below min", `{"email":"a@b.co","count":0}`, "payload.Count failed on min=1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var p payload
			appErr := DecodeAndValidate(req, &p)
			if tc.wantErr == "" {
				assert.Nil(t, appErr)
				return
			}
			require.NotNil(t, appErr)
			assert.Equal(t, http.StatusBadRequest, appErr.Code)
			assert.Contains(t, appErr.Message, tc.wantErr)
		})
	}
}

func TestAppError_Send(t *testing.T) {
	rr := httptest.NewRecorder()
	NewAppError(http.StatusNotFound, "order not found", nil).Send(rr)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"code": float64(404), "message": "order not found"}, body)
}
