package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"

	synchandler "github.com/quillbox/quillbox/internal/server/handlers/sync"
	"github.com/quillbox/quillbox/internal/server/middlewares"
	"github.com/quillbox/quillbox/internal/version"
)

func SetupRoutes(svc *Services, config *Config) http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20 // 8 MiB

	syncH := synchandler.New(svc.Sync, config.Data.MaxUploadSize)

	httpLogger := slog.Default().WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	}))
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())
	r.Use(middlewares.SecurityHeaders())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.RateLimiter(config.HTTP.RateLimit))
	{
		v1.POST("/sync/init", syncH.Init)
		v1.PUT("/sync/upload", syncH.Upload)
		v1.GET("/sync/download", syncH.Download)
		v1.POST("/sync/commit", syncH.Commit)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
