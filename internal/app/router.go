package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"busreg.io/stager/internal/api/handlers"
	"busreg.io/stager/internal/api/middleware"
	"busreg.io/stager/internal/auth"
	"busreg.io/stager/internal/config"
	"busreg.io/stager/internal/pkg/logger"
)

var defaultAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

func newRouter(cfg *config.Config, server *handlers.Server, groups auth.Groups, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.SecurityHeaders(),
		cors.New(buildCORSConfig(cfg)),
		middleware.ErrorHandler(),
	)

	v1 := router.Group("/api/v1")
	v1.GET("/health/live", server.GetLiveness)

	// Contract checks run after the access checks.
	validate := middleware.MustOpenAPIValidator("/api/v1", cfg.Upload.MaxBytes)

	authed := v1.Group("", middleware.Bearer(), middleware.RequireOperator(groups), validate)
	authed.GET("/uploads/pending", server.ListPending)
	authed.GET("/uploads/staged", server.GetStaged)
	authed.GET("/uploads/report/:id", server.GetReport)
	authed.GET("/registrations/status", server.GetRegistrationStatus)
	authed.GET("/registrations/export", server.ExportRegistrations)

	readers := v1.Group("", middleware.Bearer(), middleware.RequireAccess(groups, auth.AccessReadOnly), validate)
	readers.GET("/registrations/search", server.SearchRegistrations)

	mutating := authed.Group("", middleware.RateLimit(limiter))
	mutating.POST("/uploads", server.CreateUpload)
	mutating.POST("/uploads/staged/commit", server.CommitStaged)
	mutating.POST("/uploads/staged/discard", server.DiscardStaged)

	admin := v1.Group("/admin", middleware.Bearer(), middleware.RequireAccess(groups, auth.AccessAdmin), validate)
	level := gin.WrapH(logger.Level())
	admin.GET("/log-level", level)
	admin.PUT("/log-level", level)

	return router
}

// buildCORSConfig allows the SPA origins with credentials so the stage_id
// cookie travels. A "*" entry is ignored unless unsafe_allow_all_origins is
// set, which also turns credentials off. An empty list means the local SPA.
func buildCORSConfig(cfg *config.Config) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
		return cc
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" || o == "*" {
			continue
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	cc.AllowOrigins = origins
	return cc
}
