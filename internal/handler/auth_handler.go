package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/auth-api/internal/middleware"
	"github.com/campushub/auth-api/internal/models"
	"github.com/campushub/auth-api/internal/service"
	appErrors "github.com/campushub/auth-api/pkg/errors"
	"github.com/campushub/auth-api/pkg/response"
)

// CookieSettings control the flags and lifetimes of the session cookies.
type CookieSettings struct {
	Domain        string
	Secure        bool
	AccessMaxAge  int
	RefreshMaxAge int
	CSRFMaxAge    int
}

// AuthHandler wires HTTP endpoints to the auth service. Tokens travel in
// cookies; response bodies carry only user info and metadata.
type AuthHandler struct {
	service *service.AuthService
	cookies CookieSettings
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies}
}

// CSRFToken godoc
// @Summary Issue CSRF token
// @Description Returns a fresh CSRF token and sets the readable CSRF cookie
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /csrf-token [get]
func (h *AuthHandler) CSRFToken(c *gin.Context) {
	token, err := middleware.IssueCSRFToken()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue CSRF token"))
		return
	}

	// Deliberately not httponly: the client must read this value and echo
	// it in the CSRF header.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CSRFCookieName, token, h.cookies.CSRFMaxAge, "/", h.cookies.Domain, h.cookies.Secure, false)

	response.JSON(c, http.StatusOK, gin.H{"csrfToken": token})
}

// Register godoc
// @Summary Register a new account
// @Description Create a user and open its first session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookies(c, res)
	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email and password, sets session cookies
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookies(c, res)
	response.JSON(c, http.StatusOK, res)
}

// Refresh godoc
// @Summary Rotate the session
// @Description Exchange the refresh cookie for a new access/refresh pair
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	presented, err := c.Cookie(middleware.RefreshTokenCookie)
	if err != nil || presented == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing refresh token"))
		return
	}

	meta := service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	res, err := h.service.Refresh(c.Request.Context(), presented, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookies(c, res)
	response.JSON(c, http.StatusOK, res)
}

// Logout godoc
// @Summary Logout
// @Description Revoke all refresh tokens; blocklist the access token when one is presented. Either token of the pair authenticates the request
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	access := middleware.AccessToken(c)
	refresh, _ := c.Cookie(middleware.RefreshTokenCookie)
	if access == "" && refresh == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing access or refresh token"))
		return
	}

	meta := service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if err := h.service.Logout(c.Request.Context(), access, refresh, meta); err != nil {
		response.Error(c, err)
		return
	}

	h.clearSessionCookies(c)
	response.JSON(c, http.StatusOK, gin.H{"message": "logged out successfully"})
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's info
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	jwtClaims := claims.(*models.JWTClaims)

	info, err := h.service.CurrentUser(c.Request.Context(), jwtClaims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"user": info})
}

// ChangePassword godoc
// @Summary Change password
// @Description Change password for the current user
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Change password payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	jwtClaims := claims.(*models.JWTClaims)

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), jwtClaims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "password changed successfully"})
}

// setSessionCookies attaches both token cookies. Lifetimes mirror the token
// expiries so a browser drops a cookie at the same time its token dies.
func (h *AuthHandler) setSessionCookies(c *gin.Context, res *models.SessionResponse) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, res.AccessToken, h.cookies.AccessMaxAge, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, res.RefreshToken, h.cookies.RefreshMaxAge, "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}
