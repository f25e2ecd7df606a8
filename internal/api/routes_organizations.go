package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/handlers"
	"github.com/bloodbridge/bloodbridge/internal/middleware"
)

func registerOrganizationRoutes(api, admin *gin.RouterGroup, handler *handlers.OrganizationHandler) {
	api.GET("/organizations", handler.Search)
	api.GET("/organizations/:id/blood-stock", handler.OrganizationStock)
	api.POST("/organization-requests", handler.Apply)

	stock := api.Group("/blood-stock")
	stock.Use(middleware.RequireOrganization())
	{
		stock.GET("", handler.MyStock)
		stock.PUT("", handler.UpsertStock)
	}

	admin.GET("/users", handler.SearchUsers)
	admin.GET("/organization-requests", handler.ListApplications)
	admin.PUT("/organization-requests/:id/status", handler.DecideApplication)
}
