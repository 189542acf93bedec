package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
	"go.uber.org/zap"
)

const (
	msgNotLoggedIn    = "You are not logged in"
	msgInvalidSession = "Token is invalid or session has expired"
	msgInternal       = "Something went wrong, please try again later"

	userIDKey = "userID"
)

type userIDContextKey struct{}

// UserIDFromContext returns the id of the user authenticated by AuthMiddleware
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey{}).(string)
	return id, ok && id != ""
}

// CurrentUserID returns the authenticated user id for a gin request
func CurrentUserID(c *gin.Context) (string, bool) {
	if id := c.GetString(userIDKey); id != "" {
		return id, true
	}
	return UserIDFromContext(c.Request.Context())
}

// AuthMiddleware creates middleware that validates access tokens.
//
// The token is taken from an "Authorization: Bearer" header, or from the
// access_token cookie when no bearer header is sent. On success the user id is
// attached to this request's context only.
func AuthMiddleware(authService *service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractAccessToken(c)

		user, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrMissingToken):
				fail(c, http.StatusUnauthorized, msgNotLoggedIn)
			case errors.Is(err, core.ErrInvalidToken):
				fail(c, http.StatusUnauthorized, msgInvalidSession)
			default:
				logger.Error("failed to authenticate request",
					zap.String("path", c.Request.URL.Path),
					zap.Error(err),
				)
				internalError(c)
			}
			return
		}

		c.Set(userIDKey, user.ID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), userIDContextKey{}, user.ID))

		c.Next()
	}
}

// extractAccessToken prefers the Authorization header whenever it is sent.
// A header that is not a usable Bearer token yields no token at all.
func extractAccessToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		token, _ := bearerToken(header)
		return token
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return cookie
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "fail", "message": message})
}

func internalError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgInternal})
}
