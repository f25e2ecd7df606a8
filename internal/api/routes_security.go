package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/handlers"
)

func registerSecurityRoutes(admin *gin.RouterGroup, handler *handlers.SecurityHandler) {
	admin.GET("/security-audit", handler.Audit)
}
