package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushub/auth-api/internal/service"
	appErrors "github.com/campushub/auth-api/pkg/errors"
	"github.com/campushub/auth-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// Cookie names for the token pair. Both cookies are httponly; the browser
// presents them automatically and scripts never see them.
const (
	AccessTokenCookie  = "access_token_cookie"
	RefreshTokenCookie = "refresh_token_cookie"
)

// AccessToken extracts the raw access token from the request: Authorization
// bearer header first, then the access token cookie. A header that does not
// parse as "Bearer <token>" is ignored rather than treated as a failed
// attempt, so browser clients with a stray header still authenticate by
// cookie.
func AccessToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return cookie
	}
	return ""
}

// JWT protects routes by requiring a valid, unrevoked access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c)
		if token == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing access token"))
			c.Abort()
			return
		}

		claims, err := authService.Authorize(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}
