package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/gin-gonic/gin"

	appErrors "github.com/campushub/auth-api/pkg/errors"
	"github.com/campushub/auth-api/pkg/response"
)

// Double-submit CSRF: the token lives in a readable cookie and must be echoed
// in a request header. A cross-site attacker can make the browser send the
// cookie but cannot read it to forge the header.
const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// IssueCSRFToken generates an opaque random CSRF token.
func IssueCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CSRF rejects state-changing requests whose cookie/header token pair is
// missing or mismatched. Login and register are mounted without this guard:
// they precede any session and cannot carry a pair yet.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(CSRFCookieName)
		if err != nil || cookie == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrCSRF, "missing CSRF cookie"))
			c.Abort()
			return
		}

		header := c.GetHeader(CSRFHeaderName)
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrCSRF, "missing CSRF header"))
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrCSRF, "CSRF token mismatch"))
			c.Abort()
			return
		}

		c.Next()
	}
}
