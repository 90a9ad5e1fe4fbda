package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"catalog-service/pkg/jwtutil"
	"catalog-service/prometheus"

	"github.com/labstack/echo/v4"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invokeAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	next := func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	}
	require.NoError(t, AuthMiddleware(next)(c))
	return rec, c, called
}

func authErrors(errorType string) float64 {
	return promtestutil.ToFloat64(prometheus.AuthErrorCounter.WithLabelValues(errorType))
}

func TestAuthMiddlewareMissingTokenCounted(t *testing.T) {
	before := authErrors("missing_token")

	rec, _, called := invokeAuth(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
	assert.Equal(t, before+1, authErrors("missing_token"))
}

func TestAuthMiddlewareBadFormatCounted(t *testing.T) {
	before := authErrors("invalid_auth_format")

	rec, _, called := invokeAuth(t, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
	assert.Equal(t, before+1, authErrors("invalid_auth_format"))
}

func TestAuthMiddlewareInvalidTokenCounted(t *testing.T) {
	before := authErrors("invalid_token")

	rec, _, called := invokeAuth(t, "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
	assert.Equal(t, before+1, authErrors("invalid_token"))
}

func TestAuthMiddlewareValidTokenPopulatesContext(t *testing.T) {
	tenantID := "t1"
	token, err := jwtutil.GenerateToken("user@example.com", "u1", &tenantID, "Acme", "member")
	require.NoError(t, err)

	rec, c, called := invokeAuth(t, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
	assert.Equal(t, "u1", c.Get("user_id"))
	assert.Equal(t, "user@example.com", c.Get("email"))
	assert.Equal(t, "member", c.Get("user_role"))
	assert.Equal(t, "t1", c.Get("tenant_id"))
}
