package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/skillgate/internal/auth"
)

func newTestTokenService() *auth.TokenService {
	return auth.NewTokenService(testSigningKey, "skillgate", 12)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tokenSvc := newTestTokenService()
	token, err := tokenSvc.CreateToken(&auth.Operator{Subject: "ops", Scopes: []string{auth.ScopeAuditRead}})
	require.NoError(t, err)

	var got *auth.Operator
	handler := auth.Middleware(tokenSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.GetOperator(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "ops", got.Subject)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tokenSvc := newTestTokenService()
	handler := auth.Middleware(tokenSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", "missing authorization header"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"empty bearer", "Bearer ", "invalid authorization header format"},
		{"bad token", "Bearer nope", "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestRequireScope(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	guarded := auth.RequireScope(auth.ScopeAuditRead)(ok)

	tests := []struct {
		name string
		op   *auth.Operator
		want int
	}{
		{"no operator", nil, http.StatusUnauthorized},
		{"missing scope", &auth.Operator{Subject: "ops", Scopes: []string{auth.ScopeCacheWrite}}, http.StatusForbidden},
		{"granted", &auth.Operator{Subject: "ops", Scopes: []string{auth.ScopeAuditRead}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.op != nil {
				req = req.WithContext(auth.WithOperator(req.Context(), tt.op))
			}
			w := httptest.NewRecorder()
			guarded.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
