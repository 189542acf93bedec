package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/service"
	"go.uber.org/zap"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, cookies CookieConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(logger), gin.Recovery())

	// Create handlers
	handlers := NewAuthHandlers(authService, cookies, logger)

	api := router.Group("/api")
	api.GET("/healthchecker", handlers.HealthCheck)

	// Auth routes
	auth := api.Group("/auth")
	{
		auth.POST("/signup", handlers.Signup)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected routes
	users := api.Group("/users")
	users.Use(AuthMiddleware(authService, logger))
	{
		users.GET("/me", handlers.Me)
	}

	return router
}
