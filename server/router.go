package server

import (
	"slices"
	"time"

	httpHandler "content-pipeline/interfaces/http"
	"content-pipeline/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func InitiateRouter(adminHandler httpHandler.IAdminHandler, secretKey string, allowOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if len(allowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     allowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			AllowOriginFunc: func(origin string) bool {
				return slices.Contains(allowOrigins, origin)
			},
			MaxAge: 12 * time.Hour,
		}))
	}

	router.GET("/health", adminHandler.Health)
	router.GET("/health/details", adminHandler.HealthDetails)
	router.GET("/sources", adminHandler.ListSources)
	router.GET("/posts", adminHandler.ListPosts)
	router.GET("/queue", adminHandler.ListQueue)
	router.GET("/logs", adminHandler.ListLogs)

	jobs := router.Group("")
	if secretKey != "" {
		jobs.Use(middleware.AdminAuth(secretKey))
	}
	jobs.POST("/jobs/ingestion", adminHandler.TriggerIngestion)
	jobs.POST("/jobs/publish", adminHandler.TriggerPublish)
	jobs.GET("/jobs/stream", adminHandler.Stream)

	// Legacy trigger paths
	jobs.POST("/cron/a", adminHandler.TriggerIngestion)
	jobs.POST("/cron/b", adminHandler.TriggerPublish)

	return router
}
