package router

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/notify-scheduler/internal/api/handlers/metrics"
	"github.com/aliskhannn/notify-scheduler/internal/api/handlers/notification"
	"github.com/aliskhannn/notify-scheduler/internal/middlewares"
)

func New(notifHandler *notification.Handler, metricsHandler *metrics.Handler) *ginext.Engine {
	e := ginext.New()
	e.Use(middlewares.CORSMiddleware())
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	e.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	{
		n := api.Group("/notifications")
		{
			n.POST("/push", notifHandler.CreatePush)
			n.POST("/email", notifHandler.CreateEmail)
			n.GET("/", notifHandler.List)
			n.GET("/:id", notifHandler.GetByID)
			n.POST("/:id/cancel", notifHandler.Cancel)
			n.POST("/:id/force", notifHandler.Force)
		}

		api.GET("/metrics", metricsHandler.Snapshot)
	}

	return e
}
