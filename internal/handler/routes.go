package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campushub/auth-api/internal/middleware"
	"github.com/campushub/auth-api/internal/models"
	"github.com/campushub/auth-api/internal/service"
)

// RegisterRoutes mounts the auth endpoints under the API prefix. CSRF guards
// every state-changing route except login and register, which precede any
// session; JWT guards the routes that act on behalf of a user.
func RegisterRoutes(r *gin.Engine, prefix string, auth *AuthHandler, admin *AdminHandler, authSvc *service.AuthService) {
	api := r.Group(prefix)

	api.GET("/csrf-token", auth.CSRFToken)
	api.POST("/register", auth.Register)
	api.POST("/login", auth.Login)

	csrf := middleware.CSRF()
	api.POST("/refresh", csrf, auth.Refresh)
	api.POST("/logout", csrf, auth.Logout)

	jwt := middleware.JWT(authSvc)
	api.GET("/me", jwt, auth.Me)
	api.POST("/change-password", csrf, jwt, auth.ChangePassword)

	if admin != nil {
		adminGroup := api.Group("/admin", jwt, middleware.RequireRoles(models.RoleAdmin))
		adminGroup.POST("/audit-exports", csrf, admin.ExportAuditLogs)
		// Download is authorized by the signed token itself, but stays behind
		// the admin guard so tokens cannot be replayed by other roles.
		adminGroup.GET("/audit-exports/download", admin.DownloadExport)
	}
}
