package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/handlers"
	"github.com/bloodbridge/bloodbridge/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, manager *monitoring.HealthManager) {
	health := handlers.Health(manager)
	r.GET("/health", health)
	r.GET("/api/health", health)
}
