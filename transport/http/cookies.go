package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// CookieConfig controls the attributes of token cookies
type CookieConfig struct {
	Secure bool
	Domain string
	Path   string
}

func (cfg CookieConfig) path() string {
	if cfg.Path == "" {
		return "/"
	}
	return cfg.Path
}

// setTokenCookie stores a token in an httpOnly cookie that expires with the token
func (cfg CookieConfig) setTokenCookie(c *gin.Context, name, value string, ttl time.Duration, expiresAt time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cfg.path(),
		Domain:   cfg.Domain,
		Expires:  expiresAt,
		MaxAge:   int(ttl / time.Second),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearTokenCookie tells the client to drop the cookie immediately
func (cfg CookieConfig) clearTokenCookie(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cfg.path(),
		Domain:   cfg.Domain,
		MaxAge:   -1,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
