package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenContext(t *testing.T, authorization, cookie string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: cookie})
	}
	c.Request = req
	return c
}

func TestAccessTokenFromBearerHeader(t *testing.T) {
	c := newTokenContext(t, "Bearer header-token", "cookie-token")
	assert.Equal(t, "header-token", AccessToken(c))
}

func TestAccessTokenFromCookie(t *testing.T) {
	c := newTokenContext(t, "", "cookie-token")
	assert.Equal(t, "cookie-token", AccessToken(c))
}

func TestAccessTokenMalformedHeaderFallsBackToCookie(t *testing.T) {
	// A stray non-Bearer header must not mask a valid cookie session.
	for _, header := range []string{"Token abc", "Bearer", "Basic dXNlcjpwYXNz"} {
		c := newTokenContext(t, header, "cookie-token")
		assert.Equal(t, "cookie-token", AccessToken(c), "header %q", header)
	}
}

func TestAccessTokenMissingEverywhere(t *testing.T) {
	c := newTokenContext(t, "", "")
	assert.Empty(t, AccessToken(c))

	c = newTokenContext(t, "Token abc", "")
	assert.Empty(t, AccessToken(c))
}
