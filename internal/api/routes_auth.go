package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/handlers"
)

func registerPublicAuthRoutes(public *gin.RouterGroup, handler *handlers.AuthHandler) {
	auth := public.Group("/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
	}
}
