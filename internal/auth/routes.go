package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the auth routes.
func RegisterRoutes(r *gin.Engine, handler *Handler) {
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/ping", handler.Ping)
		authGroup.POST("/login", handler.Login)
	}
}
