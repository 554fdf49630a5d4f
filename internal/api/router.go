// Package api - Router setup
package api

import (
	"time"

	"github.com/aethra/hera/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(handler *Handler, cfg *config.Config) *gin.Engine {
	gin.SetMode(ginMode(cfg.Server.Mode))
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Organization-ID", "X-API-Key", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsConfig))

	r.GET("/api/health", handler.Health)

	// ==========================================================================
	// ADMIN API - tenant administration, bearer token only
	// ==========================================================================
	admin := r.Group("/admin")
	admin.Use(handler.AdminMiddleware())
	{
		admin.GET("/organizations", handler.ListOrganizations)
		admin.POST("/organizations", handler.CreateOrganization)
		admin.GET("/organizations/:id", handler.GetOrganization)
		admin.PUT("/organizations/:id", handler.UpdateOrganization)
		admin.POST("/organizations/:id/rotate-key", handler.RotateAPIKey)
	}

	// ==========================================================================
	// UNIVERSAL API - every operation runs inside one organization scope
	// ==========================================================================
	api := r.Group("/api/v1")
	api.Use(handler.OrganizationMiddleware())
	api.Use(handler.AuthMiddleware())
	{
		entities := api.Group("/entities")
		{
			entities.POST("", handler.CreateEntity)
			entities.POST("/query", handler.QueryEntities)
			entities.POST("/bulk", handler.BulkCreateEntities)
			entities.GET("/:id", handler.GetEntity)
			entities.PUT("/:id", handler.UpdateEntity)
		}

		fields := api.Group("/fields")
		{
			fields.POST("", handler.CreateField)
			fields.POST("/query", handler.QueryFields)
			fields.GET("/:id", handler.GetField)
			fields.PUT("/:id/value", handler.SetFieldValue)
			fields.POST("/:id/revalidate", handler.RevalidateField)
		}

		rels := api.Group("/relationships")
		{
			rels.POST("", handler.CreateRelationship)
			rels.POST("/query", handler.QueryRelationships)
			rels.GET("/:id", handler.GetRelationship)
			rels.PUT("/:id", handler.UpdateRelationship)
		}

		txns := api.Group("/transactions")
		{
			txns.POST("", handler.CreateTransaction)
			txns.POST("/query", handler.QueryTransactions)
			txns.GET("/:id", handler.GetTransaction)
			txns.PUT("/:id", handler.UpdateTransaction)
		}
	}

	return r
}

func ginMode(mode string) string {
	switch mode {
	case "release", "production":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
