package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/backend/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	s := newTestAPI(t)
	rec := s.do(t, call{method: http.MethodGet, path: "/healthz"})

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestPreflightReturnsNoContent(t *testing.T) {
	s := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestLoginRateLimitReturns429(t *testing.T) {
	s := newTestAPI(t)
	body := domain.LoginRequest{Email: ownerEmail, Password: "wrong-pass"}

	for i := 0; i < 6; i++ {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/login", body: body})
		if i < 5 {
			require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
			continue
		}
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeBody[errorBody](t, rec).Error.Code)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	s := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"email":"%s@test.local","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMutationWithoutCSRFTokenIsForbidden(t *testing.T) {
	s := newTestAPI(t)
	token := s.login(t, ownerEmail, ownerPassword)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(`{"type":"INCOME","amount":"1","description":"x"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeBody[errorBody](t, rec).Error.Code)
}

func TestCSRFTokenEndpoint(t *testing.T) {
	s := newTestAPI(t)
	rec := s.do(t, call{method: http.MethodGet, path: "/api/v1/auth/csrf-token"})
	require.Equal(t, http.StatusOK, rec.Code)

	token := decodeBody[map[string]string](t, rec)["csrf_token"]
	assert.True(t, s.api.validateCSRFToken(token))
	assert.False(t, s.api.validateCSRFToken("forged"))
	assert.False(t, s.api.validateCSRFToken(""))
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	s := newTestAPI(t)
	for _, token := range []string{"", "not-a-jwt"} {
		rec := s.do(t, call{method: http.MethodGet, path: "/api/v1/products", token: token})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeBody[errorBody](t, rec).Error.Code)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	s := newTestAPI(t)
	rec := s.do(t, call{method: http.MethodGet, path: "/api/v1/nope"})

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody[errorBody](t, rec).Error.Code)
}

func TestPanicsAreRecovered(t *testing.T) {
	s := newTestAPI(t)
	handler := s.api.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
}
