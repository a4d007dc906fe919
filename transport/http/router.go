package http

import (
	"github.com/gin-gonic/gin"
	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/service"
)

// SetupRouter sets up the gin router.
func SetupRouter(handlers *AuthHandlers, authService *service.AuthService, cookies CookieWriter) *gin.Engine {
	router := gin.Default()

	// Auth routes. Rate limiting happens inside the handlers, before
	// any credential state is touched.
	auth := router.Group("/auth")
	{
		auth.POST("/otp/request", handlers.RequestOtp)
		auth.POST("/otp/verify", handlers.VerifyOtp)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
		auth.POST("/logout-all",
			AuthMiddleware(authService, cookies, core.RoleCustomer, core.RoleWorker, core.RoleAdmin),
			handlers.LogoutAll)
	}

	// Protected API routes.
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService, cookies, core.RoleCustomer, core.RoleWorker, core.RoleAdmin))
	{
		api.GET("/me", handlers.Me)
	}

	// Admin tier.
	admin := router.Group("/api/admin")
	admin.Use(AuthMiddleware(authService, cookies, core.RoleAdmin))
	{
		admin.GET("/overview", handlers.AdminOverview)
	}

	return router
}
