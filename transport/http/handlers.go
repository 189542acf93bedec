package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
	"go.uber.org/zap"
)

const (
	msgDuplicateUser      = "User with that email already exists"
	msgInvalidCredentials = "Invalid email or password"
	msgRefreshFailed      = "Could not refresh access token"
	msgInvalidRequest     = "Invalid request"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	cookies     CookieConfig
	logger      *zap.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, cookies CookieConfig, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		cookies:     cookies,
		logger:      logger,
	}
}

// Signup handles the signup request
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	user, err := h.authService.Signup(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateUser):
			fail(c, http.StatusConflict, msgDuplicateUser)
			return
		case errors.Is(err, core.ErrInvalidInput):
			fail(c, http.StatusBadRequest, msgInvalidRequest)
			return
		}
		h.logger.Error("signup failed", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"user":   user,
	})
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		internalError(c)
		return
	}

	h.cookies.setTokenCookie(c, AccessTokenCookie, session.AccessToken, h.authService.AccessTTL(), session.AccessExpiresAt)
	h.cookies.setTokenCookie(c, RefreshTokenCookie, session.RefreshToken, h.authService.RefreshTTL(), session.RefreshExpiresAt)

	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"access_token": session.AccessToken,
	})
}

// Refresh issues a new access token from the refresh_token cookie
func (h *AuthHandlers) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(RefreshTokenCookie)

	session, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		// missing, malformed and expired tokens get the same answer
		if errors.Is(err, core.ErrMissingToken) || errors.Is(err, core.ErrInvalidToken) {
			fail(c, http.StatusForbidden, msgRefreshFailed)
			return
		}
		h.logger.Error("refresh failed", zap.Error(err))
		internalError(c)
		return
	}

	h.cookies.setTokenCookie(c, AccessTokenCookie, session.AccessToken, h.authService.AccessTTL(), session.AccessExpiresAt)

	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"access_token": session.AccessToken,
	})
}

// Logout clears both token cookies. No token is required.
func (h *AuthHandlers) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(RefreshTokenCookie)
	h.authService.Logout(c.Request.Context(), refreshToken)

	h.cookies.clearTokenCookie(c, AccessTokenCookie)
	h.cookies.clearTokenCookie(c, RefreshTokenCookie)

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Me returns the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	id, ok := CurrentUserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, msgNotLoggedIn)
		return
	}

	user, err := h.authService.User(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			fail(c, http.StatusUnauthorized, msgInvalidSession)
			return
		}
		h.logger.Error("failed to load current user", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"user":   user,
	})
}

// HealthCheck reports that the service is up
func (h *AuthHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Welcome to JWT Authentication with Asymmetric Cryptography",
	})
}
