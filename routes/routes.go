package routes

import (
	"net/http"

	"ridelink/internal/config"
	"ridelink/internal/handlers"
	"ridelink/internal/middleware"
	"ridelink/internal/models"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Rides      *handlers.RideHandler
	Drivers    *handlers.DriverHandler
	Categories *handlers.CategoryHandler
	Admin      *handlers.AdminHandler
	WebSocket  *handlers.WebSocketHandler

	// HealthCheck reports storage reachability for the health endpoint.
	HealthCheck func() error
}

func Setup(router *gin.Engine, h *Handlers, cfg *config.Config, log *logger.Logger) {
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Security))
	router.Use(middleware.RequestLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if h.HealthCheck != nil {
			if err := h.HealthCheck(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"name":    utils.AppName,
			"version": utils.AppVersion,
		})
	})

	auth := middleware.AuthMiddleware(cfg.Security)

	v1 := router.Group("/api/v1")
	{
		// Public catalog
		v1.GET("/categories", h.Categories.List)
		v1.GET("/categories/:id", h.Categories.Get)

		// Authenticated
		authed := v1.Group("", auth)
		{
			authed.GET("/ws", h.WebSocket.Connect)

			rides := authed.Group("/rides")
			{
				rides.POST("", h.Rides.RequestRide)
				rides.POST("/quote", h.Rides.QuotePreview)
				rides.GET("/active", h.Rides.ActiveRide)
				rides.GET("/history", h.Rides.History)
				rides.GET("/nearby-drivers", h.Rides.NearbyDrivers)
				rides.GET("/:id", h.Rides.GetRide)
				rides.GET("/:id/assignment", h.Rides.AwaitAssignment)
				rides.POST("/:id/cancel", h.Rides.CancelRide)
				rides.POST("/:id/rating", h.Rides.RateRide)
			}

			drivers := authed.Group("/driver")
			{
				drivers.POST("/register", h.Drivers.Register)

				onlyDrivers := drivers.Group("", middleware.RequireRole(string(models.RoleDriver)))
				{
					onlyDrivers.GET("/me", h.Drivers.Me)
					onlyDrivers.PUT("/vehicle", h.Drivers.UpdateVehicle)

					onlyDrivers.POST("/online", h.Drivers.GoOnline)
					onlyDrivers.POST("/offline", h.Drivers.GoOffline)
					onlyDrivers.POST("/location", h.Drivers.ReportLocation)

					onlyDrivers.GET("/rides/pending", h.Drivers.PendingRides)
					onlyDrivers.GET("/rides/active", h.Drivers.ActiveRide)
					onlyDrivers.GET("/rides/history", h.Drivers.History)
					onlyDrivers.POST("/rides/:id/accept", h.Drivers.AcceptRide)
					onlyDrivers.POST("/rides/:id/decline", h.Drivers.DeclineRide)
					onlyDrivers.POST("/rides/:id/arrived", h.Drivers.MarkArrived)
					onlyDrivers.POST("/rides/:id/start", h.Drivers.StartRide)
					onlyDrivers.POST("/rides/:id/complete", h.Drivers.CompleteRide)
					onlyDrivers.POST("/rides/:id/cancel", h.Drivers.CancelRide)
					onlyDrivers.POST("/rides/:id/rating", h.Drivers.RateRide)
				}
			}

			admin := authed.Group("/admin", middleware.RequireRole(string(models.RoleAdmin)))
			{
				admin.POST("/categories", h.Categories.Create)
				admin.PUT("/categories/:id", h.Categories.Update)
				admin.DELETE("/categories/:id", h.Categories.Delete)

				admin.GET("/drivers/:id", h.Admin.GetDriver)
				admin.PUT("/drivers/:id/approval", h.Admin.SetDriverApproval)
			}
		}
	}
}
