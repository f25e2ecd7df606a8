package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/handlers"
)

func registerBloodRequestRoutes(api, admin *gin.RouterGroup, requests *handlers.BloodRequestHandler, donors *handlers.DonorHandler) {
	group := api.Group("/blood-requests")
	{
		group.POST("", requests.Submit)
		group.GET("", requests.ListMine)
		group.GET("/:id", requests.Get)

		group.POST("/:id/donors", donors.Volunteer)
		group.GET("/:id/donors", donors.ListForRequest)
		group.PUT("/:id/donors/:donorId/status", donors.Decide)
	}
	api.GET("/donors/me", donors.ListMine)

	admin.GET("/blood-requests", requests.ListAll)
	admin.PUT("/blood-requests/:id/status", requests.UpdateStatus)
}
