package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/handlers"
)

func registerCampaignRoutes(api, admin *gin.RouterGroup, handler *handlers.CampaignHandler) {
	api.GET("/campaigns", handler.List)
	api.POST("/campaigns/:id/interest", handler.SetInterest)

	admin.POST("/campaigns", handler.Create)
}
