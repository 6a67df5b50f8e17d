package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers Auth routes. Ping is public; Me runs behind mw.
func RegisterRoutes(r *gin.RouterGroup, handler *Handler, mw gin.HandlerFunc) {
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/ping", handler.Ping)
		authGroup.GET("/me", mw, handler.Me)
	}
}
