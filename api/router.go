package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(s *Server) *gin.Engine {
	router := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"} // Configure appropriately in production
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(config))

	// Health check
	router.GET("/health", s.HealthCheck)

	// API routes
	api := router.Group("/api")
	{
		// Collection runs
		api.POST("/collections", s.StartCollection)
		api.GET("/collections", s.ListCollections)
		api.GET("/collections/:id", s.GetCollection)
		api.DELETE("/collections/:id", s.CancelCollection)

		// Whole-prefix replication
		api.POST("/sync", s.StartSync)

		// Scheduled collections
		api.POST("/schedules", s.CreateSchedule)
		api.GET("/schedules", s.ListSchedules)
		api.GET("/schedules/stats", s.ScheduleStats)
		api.GET("/schedules/:id", s.GetSchedule)
		api.PUT("/schedules/:id", s.UpdateSchedule)
		api.DELETE("/schedules/:id", s.DeleteSchedule)
		api.POST("/schedules/:id/enable", s.EnableSchedule)
		api.POST("/schedules/:id/disable", s.DisableSchedule)
		api.POST("/schedules/:id/run", s.RunScheduleNow)

		// Debug endpoints
		api.GET("/debug/runtime", s.DebugRuntime)
		api.GET("/debug/tool", s.DebugTool)
	}

	return router
}
